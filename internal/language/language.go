// Package language holds the playground's language catalog: the identifiers,
// execution versions, file extensions and starting templates of every
// supported language.
package language

import "sort"

// Language describes one playground language.
type Language struct {
	// ID is the playground's canonical identifier (e.g. "python", "cpp").
	ID string `json:"id"`
	// Name is the display name, also sent to the hint service.
	Name string `json:"name"`
	// Extension is the source file extension including the dot.
	Extension string `json:"extension"`
	// Version is the runtime version requested from the execution service.
	Version string `json:"version"`
	// Template is the starting boilerplate for a fresh editor.
	Template string `json:"template"`
}

// FileName returns the name the source is submitted under ("main.py").
func (l Language) FileName() string {
	return "main" + l.Extension
}

// IsTemplate reports whether code is the untouched starting template.
func (l Language) IsTemplate(code string) bool {
	return code == l.Template
}

// CFamily reports whether the language uses brace-delimited blocks.
func (l Language) CFamily() bool {
	switch l.ID {
	case "javascript", "c", "cpp", "java":
		return true
	}
	return false
}

// Default is the language a new session starts with.
const Default = "python"

var catalog = map[string]Language{
	"python": {
		ID:        "python",
		Name:      "Python",
		Extension: ".py",
		Version:   "3.10.0",
		// The blank line inside main keeps its indentation.
		Template: "# Python Code\n" +
			"# Start coding here!\n" +
			"\n" +
			"def main():\n" +
			"    print(\"Hello, World!\")\n" +
			"    \n" +
			"if __name__ == \"__main__\":\n" +
			"    main()\n",
	},
	"javascript": {
		ID:        "javascript",
		Name:      "JavaScript",
		Extension: ".js",
		Version:   "18.15.0",
		Template: `// JavaScript Code
// Start coding here!

function main() {
    console.log("Hello, World!");
}

main();
`,
	},
	"c": {
		ID:        "c",
		Name:      "C",
		Extension: ".c",
		Version:   "10.2.0",
		Template: `// C Code
// Start coding here!

#include <stdio.h>

int main() {
    printf("Hello, World!\n");
    return 0;
}
`,
	},
	"cpp": {
		ID:        "cpp",
		Name:      "C++",
		Extension: ".cpp",
		Version:   "10.2.0",
		Template: `// C++ Code
// Start coding here!

#include <iostream>
using namespace std;

int main() {
    cout << "Hello, World!" << endl;
    return 0;
}
`,
	},
	"java": {
		ID:        "java",
		Name:      "Java",
		Extension: ".java",
		Version:   "15.0.2",
		Template: `// Java Code
// Start coding here!

public class Main {
    public static void main(String[] args) {
        System.out.println("Hello, World!");
    }
}
`,
	},
}

// Lookup returns the language with the given id.
func Lookup(id string) (Language, bool) {
	l, ok := catalog[id]
	return l, ok
}

// ByExtension finds a language by file extension (".py").
func ByExtension(ext string) (Language, bool) {
	for _, l := range catalog {
		if l.Extension == ext {
			return l, true
		}
	}
	return Language{}, false
}

// All returns every language sorted by id.
func All() []Language {
	out := make([]Language, 0, len(catalog))
	for _, l := range catalog {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
