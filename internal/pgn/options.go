/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pgn turns move trees into Portable Game Notation and back.
package pgn

// Options selects which annotation classes a rendering includes.
// The zero value renders bare main-line moves.
//
// Symbols writes the informal glyphs: move-quality ones attach to the SAN
// ("e4!?"), assessments follow as their own token ("e4 ±"). SpecialSymbols
// writes the numeric form ("$22"): for glyphs without a portable text form, and
// for every glyph when Symbols is off. With both off no annotation is written.
type Options struct {
	Comments       bool `yaml:"comments" json:"comments"`
	Symbols        bool `yaml:"symbols" json:"symbols"`
	Variations     bool `yaml:"variations" json:"variations"`
	SpecialSymbols bool `yaml:"special_symbols" json:"specialSymbols"`
}

// DefaultOptions enables everything except special symbols.
func DefaultOptions() Options {
	return Options{Comments: true, Symbols: true, Variations: true}
}

// AllOptions enables every annotation class. Output rendered with it parses back
// into an equivalent tree.
func AllOptions() Options {
	return Options{Comments: true, Symbols: true, Variations: true, SpecialSymbols: true}
}
