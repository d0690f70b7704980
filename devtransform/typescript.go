/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package devtransform turns TypeScript/JSX source and CSS files into
// browser-loadable ES modules for the dev server to serve on request.
package devtransform

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// Loader selects the esbuild parser for a source file.
type Loader string

const (
	LoaderTS  Loader = "ts"
	LoaderTSX Loader = "tsx"
	LoaderJS  Loader = "js"
	LoaderJSX Loader = "jsx"
)

// Target is an ECMAScript target version string accepted on the CLI/config.
type Target string

const (
	ES2015 Target = "es2015"
	ES2016 Target = "es2016"
	ES2017 Target = "es2017"
	ES2018 Target = "es2018"
	ES2019 Target = "es2019"
	ES2020 Target = "es2020"
	ES2021 Target = "es2021"
	ES2022 Target = "es2022"
	ES2023 Target = "es2023"
	ESNext Target = "esnext"
)

// IsValidTarget reports whether target is one of the known ECMAScript
// target strings.
func IsValidTarget(target string) bool {
	switch Target(target) {
	case ES2015, ES2016, ES2017, ES2018, ES2019, ES2020, ES2021, ES2022, ES2023, ESNext:
		return true
	default:
		return false
	}
}

// SourceMapMode controls where esbuild places the generated source map.
type SourceMapMode string

const (
	SourceMapInline   SourceMapMode = "inline"
	SourceMapExternal SourceMapMode = "external"
	SourceMapNone     SourceMapMode = "none"
)

// Options configures a single-file transform.
type Options struct {
	Loader     Loader
	Target     Target
	Sourcemap  SourceMapMode
	Sourcefile string
}

// Result is a transformed file, ready to serve as a JavaScript module. It
// carries no dependency list: the module graph does no import parsing of
// its own and records only the import lists passed to UpdateModuleInfo;
// the transform itself only concerns itself with producing servable code.
type Result struct {
	Code string
	Map  string
}

func esbuildLoader(l Loader) api.Loader {
	switch l {
	case LoaderTSX:
		return api.LoaderTSX
	case LoaderJS:
		return api.LoaderJS
	case LoaderJSX:
		return api.LoaderJSX
	default:
		return api.LoaderTS
	}
}

func esbuildTarget(t Target) api.Target {
	switch t {
	case ES2015:
		return api.ES2015
	case ES2016:
		return api.ES2016
	case ES2017:
		return api.ES2017
	case ES2018:
		return api.ES2018
	case ES2019:
		return api.ES2019
	case ES2020:
		return api.ES2020
	case ES2021:
		return api.ES2021
	case ES2023:
		return api.ES2023
	case ESNext:
		return api.ESNext
	default:
		return api.ES2022
	}
}

func esbuildSourcemap(m SourceMapMode) api.SourceMap {
	switch m {
	case SourceMapExternal:
		return api.SourceMapExternal
	case SourceMapNone:
		return api.SourceMapNone
	default:
		return api.SourceMapInline
	}
}

// TypeScript transforms TypeScript/JSX source to a browser-loadable ES
// module via a single esbuild Transform call (no bundling — that is the
// optimizer's job for bare imports, and the module graph's for local
// files fetched one at a time).
func TypeScript(source []byte, opts Options) (*Result, error) {
	tsconfigRaw := `{"compilerOptions":{"importHelpers":false}}`

	result := api.Transform(string(source), api.TransformOptions{
		Loader:      esbuildLoader(opts.Loader),
		Target:      esbuildTarget(opts.Target),
		Format:      api.FormatESModule,
		Sourcemap:   esbuildSourcemap(opts.Sourcemap),
		Sourcefile:  opts.Sourcefile,
		TsconfigRaw: tsconfigRaw,
	})

	if len(result.Errors) > 0 {
		msg := "transform failed:\n"
		for _, e := range result.Errors {
			msg += fmt.Sprintf("  %s\n", e.Text)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	return &Result{Code: string(result.Code), Map: string(result.Map)}, nil
}
