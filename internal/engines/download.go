/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engines

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gochessstudio/internal/domain"
	applog "gochessstudio/internal/log"
)

// Progress is one download event. Events of one ID carry a non-decreasing Percent
// in [0,100]; the last one has Done set, and Err when the download failed.
type Progress struct {
	ID      int
	Percent float64
	Done    bool
	Err     error
	Path    string // set on the successful terminal event
}

// Request describes a download. With Unzip the archive is extracted into Dest,
// otherwise the file is stored in Dest under the URL's base name. Executable,
// relative to Dest and slash-separated, is marked executable afterwards.
type Request struct {
	ID         int
	URL        string
	Dest       string
	Unzip      bool
	Executable string
}

// Downloader fetches engine files over HTTP.
type Downloader struct {
	client *http.Client
	log    *slog.Logger
}

// NewDownloader returns a Downloader using client, or a default client when nil.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &Downloader{client: client, log: applog.WithComponent("engines")}
}

// Download performs req and reports progress on events. Intermediate events are
// dropped when the receiver is not ready; the terminal event is always delivered,
// so the receiver must keep reading until it sees Done. It returns the path of the
// executable (or of the stored file) on success.
func (d *Downloader) Download(ctx context.Context, req Request, events chan<- Progress) (string, error) {
	l := applog.WithOperation(d.log, "download").With(slog.String("url", req.URL))
	lctx := applog.ContextWithDownload(ctx, req.ID)
	rep := &reporter{id: req.ID, events: events}
	p, err := d.download(ctx, req, rep)
	if err != nil {
		l.WarnContext(lctx, "download failed", slog.Any("err", err))
	} else {
		l.InfoContext(lctx, "download finished", slog.String("path", p))
	}
	rep.finish(p, err)
	return p, err
}

func (d *Downloader) download(ctx context.Context, req Request, rep *reporter) (string, error) {
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.Dest) == "" {
		return "", errors.New("download: url and destination are required")
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("download: parse url: %w", err)
	}
	if err := os.MkdirAll(req.Dest, 0o755); err != nil {
		return "", fmt.Errorf("download: create destination: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	resp, err := d.client.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: %s", u.Redacted(), resp.Status)
	}

	tmp, err := os.CreateTemp(req.Dest, ".download-*")
	if err != nil {
		return "", fmt.Errorf("download: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	rep.update(0)
	pr := &progressReader{r: resp.Body, total: resp.ContentLength, rep: rep}
	if _, err := io.Copy(tmp, pr); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	out := ""
	if req.Unzip {
		if err := extractZip(tmpName, req.Dest); err != nil {
			return "", err
		}
		out = req.Dest
	} else {
		name := path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			name = fmt.Sprintf("engine-%d", req.ID)
		}
		out = filepath.Join(req.Dest, name)
		_ = os.Remove(out)
		if err := os.Rename(tmpName, out); err != nil {
			return "", fmt.Errorf("download: store file: %w", err)
		}
	}
	if req.Executable != "" {
		exe, err := within(req.Dest, req.Executable)
		if err != nil {
			return "", err
		}
		if err := SetExecutable(exe); err != nil {
			return "", err
		}
		out = exe
	}
	return out, nil
}

// SetExecutable marks path as executable. It only checks existence on Windows.
func SetExecutable(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}

// extractZip unpacks archive into dest, rejecting entries that would escape it.
func extractZip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()
	for _, f := range zr.File {
		target, err := within(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extract %s: %w", f.Name, err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("extract %s: %w", f.Name, cerr)
		}
	}()
	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}

// within joins a slash-separated relative name onto dir and fails if the result
// leaves dir.
func within(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", fmt.Errorf("illegal path %q in archive", name)
	}
	return target, nil
}

// reporter sends the events of one download.
type reporter struct {
	id     int
	events chan<- Progress
	last   float64
	sent   bool
}

func (r *reporter) update(pct float64) {
	if r.events == nil {
		return
	}
	pct = max(0, min(pct, 100))
	// whole-percent steps are enough for a progress bar
	if r.sent && pct < r.last+1 {
		return
	}
	select {
	case r.events <- Progress{ID: r.id, Percent: pct}:
		r.last, r.sent = pct, true
	default:
	}
}

func (r *reporter) finish(path string, err error) {
	if r.events == nil {
		return
	}
	pct := r.last
	if err == nil {
		pct = 100
	}
	r.events <- Progress{ID: r.id, Percent: pct, Done: true, Err: err, Path: path}
}

type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	rep   *reporter
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		p.rep.update(float64(p.read) * 100 / float64(p.total))
	}
	return n, err
}

// Install downloads a catalog engine into enginesDir, marks its executable and adds
// it to the registry with the absolute executable path.
func Install(ctx context.Context, d *Downloader, reg *Registry, enginesDir string, id int, e domain.Engine, events chan<- Progress) (domain.Engine, error) {
	if e.DownloadURL == "" {
		err := fmt.Errorf("%w: %q has no download link", ErrInvalidEngine, e.Name)
		if events != nil {
			events <- Progress{ID: id, Done: true, Err: err}
		}
		return domain.Engine{}, err
	}
	if err := reg.Validate(e); err != nil {
		if events != nil {
			events <- Progress{ID: id, Done: true, Err: err}
		}
		return domain.Engine{}, err
	}
	exe, err := d.Download(ctx, Request{
		ID:         id,
		URL:        e.DownloadURL,
		Dest:       enginesDir,
		Unzip:      strings.HasSuffix(strings.ToLower(path.Base(e.DownloadURL)), ".zip"),
		Executable: e.Path,
	}, events)
	if err != nil {
		return domain.Engine{}, err
	}
	if abs, aerr := filepath.Abs(exe); aerr == nil {
		exe = abs
	}
	e.Path = exe
	if err := reg.Add(e); err != nil {
		return domain.Engine{}, err
	}
	return e, nil
}
