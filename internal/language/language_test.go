package language

import (
	"strings"
	"testing"
)

func TestLookupCatalog(t *testing.T) {
	for _, id := range []string{"python", "javascript", "c", "cpp", "java"} {
		l, ok := Lookup(id)
		if !ok {
			t.Fatalf("missing language %q", id)
		}
		if l.Template == "" || l.Version == "" {
			t.Fatalf("incomplete language %+v", l)
		}
		if !l.IsTemplate(l.Template) || l.IsTemplate(l.Template+" ") {
			t.Fatalf("IsTemplate mismatch for %q", id)
		}
	}
	if _, ok := Lookup("cobol"); ok {
		t.Fatal("did not expect cobol")
	}
	if _, ok := Lookup(Default); !ok {
		t.Fatal("default language must exist")
	}
}

func TestFileNameAndExtension(t *testing.T) {
	l, _ := Lookup("cpp")
	if l.FileName() != "main.cpp" {
		t.Fatalf("unexpected file name %q", l.FileName())
	}
	got, ok := ByExtension(".java")
	if !ok || got.ID != "java" {
		t.Fatalf("unexpected ByExtension result %+v", got)
	}
}

func TestAllSorted(t *testing.T) {
	all := All()
	if len(all) != 5 {
		t.Fatalf("expected 5 languages, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("not sorted: %q before %q", all[i-1].ID, all[i].ID)
		}
	}
}

func TestPythonTemplateKeepsIndentedBlankLine(t *testing.T) {
	py, _ := Lookup("python")
	if !strings.Contains(py.Template, "print(\"Hello, World!\")\n    \nif __name__") {
		t.Fatalf("unexpected python template %q", py.Template)
	}
	if py.IsTemplate(strings.Replace(py.Template, "\n    \n", "\n\n", 1)) {
		t.Fatal("a template with the indentation stripped is an edit")
	}
}

func TestFormatPythonRoundsIndent(t *testing.T) {
	in := "def f():\n  x = 1\n     return x\n"
	want := "def f():\n    x = 1\n    return x\n"
	if got := Format("python", in); got != want {
		t.Fatalf("unexpected format:\n%q\nwant\n%q", got, want)
	}
}

func TestFormatBraces(t *testing.T) {
	in := strings.Join([]string{
		"int main() {",
		"if (x) {",
		"return 1;",
		"}",
		"  return 0;",
		"}",
		"}",
	}, "\n")
	want := strings.Join([]string{
		"int main() {",
		"    if (x) {",
		"        return 1;",
		"    }",
		"    return 0;",
		"}",
		"}",
	}, "\n")
	if got := Format("c", in); got != want {
		t.Fatalf("unexpected format:\n%s\nwant\n%s", got, want)
	}
}

func TestFormatTemplatesAreStable(t *testing.T) {
	for _, l := range All() {
		if got := Format(l.ID, l.Template); got != l.Template {
			t.Fatalf("%s template changed by Format:\n%s", l.ID, got)
		}
	}
}
