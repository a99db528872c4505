package extract

import (
	"context"
	"testing"

	"codeatlas/internal/codegraph"
	"codeatlas/internal/tester"
)

const jsSample = `import { helper } from "./lib/util.js";

export class Animal {
  speak() {
    return helper(this.name);
  }
}

export class Dog extends Animal {
  speak() {
    return bark();
  }
}

export function bark() {
  return "woof";
}

const shout = (msg) => bark().toUpperCase();
`

func TestJavaScriptExtract_SymbolsAndHeritage(t *testing.T) {
	res, err := NewJavaScriptExtractor().Extract(context.Background(), "src/app.js", []byte(jsSample))
	tester.NoErr(t, err)

	tester.Len(t, res.Symbols, 7)
	tester.Eq(t, res.Symbols[0].Name, "src.app")
	tester.Eq(t, res.Symbols[0].Kind, codegraph.SymbolModule)

	animal := findSym(t, res, "src.app.Animal")
	animalSpeak := findSym(t, res, "src.app.Animal.speak")
	dog := findSym(t, res, "src.app.Dog")
	dogSpeak := findSym(t, res, "src.app.Dog.speak")
	bark := findSym(t, res, "src.app.bark")
	shout := findSym(t, res, "src.app.shout")

	tester.Eq(t, res.Symbols[animal].Kind, codegraph.SymbolClass)
	tester.Eq(t, res.Symbols[dogSpeak].Kind, codegraph.SymbolFunction)
	tester.Eq(t, res.Symbols[shout].Kind, codegraph.SymbolFunction)
	tester.Eq(t, res.Symbols[animal].StartLine, 3)

	tester.True(t, hasLocalEdge(res, animal, animalSpeak, codegraph.EdgeReferences))
	tester.True(t, hasLocalEdge(res, dog, animal, codegraph.EdgeInherits), "extends resolves within the file")
	tester.True(t, hasLocalEdge(res, dogSpeak, bark, codegraph.EdgeCalls))
	tester.True(t, hasLocalEdge(res, shout, bark, codegraph.EdgeCalls), "arrow function body is walked")
}

func TestJavaScriptExtract_Imports(t *testing.T) {
	res, err := NewJavaScriptExtractor().Extract(context.Background(), "src/app.js", []byte(jsSample))
	tester.NoErr(t, err)

	tester.Eq(t, res.Imports, []string{"./lib/util.js"})
	tester.True(t, hasRef(res, 0, "lib.util", codegraph.EdgeImports), "relative specifier is normalized")

	animalSpeak := findSym(t, res, "src.app.Animal.speak")
	tester.True(t, hasRef(res, animalSpeak, "helper", codegraph.EdgeCalls), "imported callee stays a ref")
}

func TestJavaScriptExtract_SyntaxErrorFails(t *testing.T) {
	_, err := NewJavaScriptExtractor().Extract(context.Background(), "bad.js", []byte("class {{{\n"))
	tester.Err(t, err)
}

func TestJSModuleTarget(t *testing.T) {
	tester.Eq(t, jsModuleTarget("./b"), "b")
	tester.Eq(t, jsModuleTarget("../../pkg/mod.mjs"), "pkg.mod")
	tester.Eq(t, jsModuleTarget("react"), "react")
}
