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

package devtransform

import (
	"strings"
	"testing"
)

func TestTypeScriptStripsTypeAnnotations(t *testing.T) {
	source := `export function greet(name: string): string { return "hi " + name; }`
	result, err := TypeScript([]byte(source), Options{Loader: LoaderTS, Target: ES2022, Sourcemap: SourceMapNone, Sourcefile: "greet.ts"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(result.Code, ": string") {
		t.Fatalf("expected type annotations stripped, got: %s", result.Code)
	}
	if !strings.Contains(result.Code, "function greet") {
		t.Fatalf("expected function body preserved, got: %s", result.Code)
	}
}

func TestTypeScriptReportsSyntaxErrors(t *testing.T) {
	_, err := TypeScript([]byte("export const x: = ;"), Options{Loader: LoaderTS, Target: ES2022, Sourcefile: "broken.ts"})
	if err == nil {
		t.Fatal("expected a syntax error")
	}
}

func TestTypeScriptDefaultsUnknownLoaderAndTarget(t *testing.T) {
	result, err := TypeScript([]byte("const x = 1;"), Options{Sourcefile: "plain.js"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Code, "const x = 1") {
		t.Fatalf("unexpected output: %s", result.Code)
	}
}

func TestIsValidTarget(t *testing.T) {
	if !IsValidTarget("es2022") {
		t.Fatal("expected es2022 to be valid")
	}
	if IsValidTarget("es1999") {
		t.Fatal("expected es1999 to be invalid")
	}
}

func TestCSSWrapsStylesheetInConstructableModule(t *testing.T) {
	out := CSS([]byte(":host { color: red; }"), "/components/x.css")
	if !strings.Contains(out, "new CSSStyleSheet()") {
		t.Fatalf("expected a CSSStyleSheet constructor, got: %s", out)
	}
	if !strings.Contains(out, "sheet.replaceSync(`:host { color: red; }`)") {
		t.Fatalf("expected the raw CSS embedded as a template literal, got: %s", out)
	}
	if !strings.Contains(out, "export default sheet;") {
		t.Fatalf("expected a default export, got: %s", out)
	}
}

func TestCSSEscapesTemplateLiteralMetacharacters(t *testing.T) {
	out := CSS([]byte("content: \"${evil}\\`\";"), "/x.css")
	if strings.Contains(strings.ReplaceAll(out, "\\${", ""), "${") {
		t.Fatalf("expected ${ substitution escaped, got: %s", out)
	}
	if !strings.Contains(out, `\${evil}`) {
		t.Fatalf("expected escaped substitution marker present, got: %s", out)
	}
}
