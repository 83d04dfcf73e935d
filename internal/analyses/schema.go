package analyses

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resultSchema is the minimum shape a reply must have to be accepted.
// Everything else in the object is passed through unchecked.
const resultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["score", "summary", "feedback"],
  "properties": {
    "score": {"type": "number"},
    "summary": {"type": "string", "minLength": 1},
    "feedback": {"type": "array"}
  }
}`

var compiledResultSchema = mustCompileSchema("analysis-result.json", resultSchema)

func mustCompileSchema(name, doc string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}
