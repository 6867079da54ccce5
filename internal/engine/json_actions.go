// internal/engine/json_actions.go
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * JSON actions take the expected JSON type as their first argument, one of
 * NULL, BOOL, NUMBER, STRING, ARRAY or OBJECT, and fail when the value is
 * of another type before checking anything else.
 */

var jsonTypeNames = map[string]string{
	"NULL":   "NULL",
	"BOOL":   "Boolean",
	"NUMBER": "Number",
	"STRING": "String",
	"ARRAY":  "Array",
	"OBJECT": "Object",
}

func jsonIsType(expectedType string, doc any) bool {
	switch doc.(type) {
	case nil:
		return expectedType == "NULL"
	case bool:
		return expectedType == "BOOL"
	case json.Number:
		return expectedType == "NUMBER"
	case string:
		return expectedType == "STRING"
	case []any:
		return expectedType == "ARRAY"
	case map[string]any:
		return expectedType == "OBJECT"
	}
	return false
}

// jsonCheckType returns an error message when doc is not of expectedType.
func jsonCheckType(expectedType string, doc any) string {
	name, ok := jsonTypeNames[expectedType]
	if !ok {
		return fmt.Sprintf("'%s' is not a valid JSON type", expectedType)
	}
	if jsonIsType(expectedType, doc) {
		return ""
	}
	return fmt.Sprintf("Was expecting a JSON %s but got a %s", name, jsondoc.TypeName(doc))
}

func jsonCheckLength(length int, doc any) string {
	switch t := doc.(type) {
	case []any:
		if len(t) != length {
			return fmt.Sprintf("Was expecting a length of %d, but actual length is %d", length, len(t))
		}
	case map[string]any:
		if len(t) != length {
			return fmt.Sprintf("Was expecting a length of %d, but actual length is %d", length, len(t))
		}
	}
	return ""
}

// jsonArgs decodes the common leading type argument and trailing JSON value
// of the JSON actions.
func jsonArgs(typeArg, valueArg *ExecutionPlanNode) (string, any, *NodeResult) {
	typeResult := orOK(typeArg.Result)
	expectedType, ok := typeResult.AsString()
	if !ok {
		return "", nil, Errorf(types.ErrTypeMismatch, "'%s' is not a valid JSON type", typeResult)
	}
	valueResult := orOK(valueArg.Result)
	v, ok := valueResult.AsValue()
	if !ok {
		return "", nil, Errorf(types.ErrTypeMismatch, "Was expecting a JSON value, but got '%s'", valueResult)
	}
	j, ok := v.(JSONValue)
	if !ok {
		return "", nil, Errorf(types.ErrTypeMismatch, "Was expecting a JSON value, but got '%s'", v.StrForm())
	}
	doc := jsondoc.Normalise(j.Doc)
	if msg := jsonCheckType(expectedType, doc); msg != "" {
		return "", nil, ErrorResult(types.ErrMismatch, msg)
	}
	return expectedType, doc, nil
}

func (i *Interpreter) executeJSONParse(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	arg, errResult := i.walkOneArg(node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	var result *NodeResult
	switch v := arg.Result.ValueOrNull().(type) {
	case BytesValue:
		result = parseJSONResult([]byte(v))
	case StringValue:
		result = parseJSONResult([]byte(v))
	case NullValue:
		result = ValueResult(Null)
	default:
		result = Errorf(types.ErrTypeMismatch, "json:parse can not be used with %s", v.ValueType())
	}
	return node.withResult(result, []*ExecutionPlanNode{arg})
}

func parseJSONResult(data []byte) *NodeResult {
	doc, err := jsondoc.Parse(data)
	if err != nil {
		return Errorf(types.ErrTypeMismatch, "json parse error: %v", err)
	}
	return ValueResult(JSONValue{Doc: doc})
}

func (i *Interpreter) executeJSONExpectEmpty(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, errResult := i.walkExactArgs(2, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	_, doc, errResult := jsonArgs(args[0], args[1])
	if errResult != nil {
		return node.withResult(errResult, args)
	}
	if msg := jsonEmptyError(doc); msg != "" {
		return node.withResult(ErrorResult(types.ErrMismatch, msg), args)
	}
	return node.withResult(ValueResult(BoolValue(true)), args)
}

// executeJSONExpectNotEmpty is the inverse of json:expect:empty. NULL is
// always empty.
func (i *Interpreter) executeJSONExpectNotEmpty(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, errResult := i.walkExactArgs(2, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	_, doc, errResult := jsonArgs(args[0], args[1])
	if errResult != nil {
		return node.withResult(errResult, args)
	}
	empty := false
	switch t := doc.(type) {
	case nil:
		empty = true
	case []any:
		empty = len(t) == 0
	case map[string]any:
		empty = len(t) == 0
	case string:
		empty = t == ""
	}
	if empty {
		return node.withResult(Errorf(types.ErrMismatch, "Expected JSON %s (%s) to not be empty",
			jsondoc.TypeName(doc), jsondoc.Serialise(doc)), args)
	}
	return node.withResult(ValueResult(BoolValue(true)), args)
}

func (i *Interpreter) executeJSONMatchLength(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, errResult := i.walkExactArgs(3, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	lengthResult := orOK(args[1].Result)
	length, ok := lengthResult.AsUint()
	if !ok {
		return node.withResult(Errorf(types.ErrTypeMismatch, "'%s' is not a valid number", lengthResult), args)
	}
	_, doc, errResult := jsonArgs(args[0], args[2])
	if errResult != nil {
		return node.withResult(errResult, args)
	}
	if msg := jsonCheckLength(int(length), doc); msg != "" {
		return node.withResult(ErrorResult(types.ErrMismatch, msg), args)
	}
	return node.withResult(ValueResult(BoolValue(true)), args)
}

func (i *Interpreter) executeJSONExpectEntries(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, errResult := i.walkExactArgs(3, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	keysResult := orOK(args[1].Result)
	keys, ok := keysResult.AsStringList()
	if !ok {
		return node.withResult(Errorf(types.ErrTypeMismatch, "'%s' is not a list of strings", keysResult), args)
	}
	_, doc, errResult := jsonArgs(args[0], args[2])
	if errResult != nil {
		return node.withResult(errResult, args)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return node.withResult(Errorf(types.ErrMismatch, "Was expecting a JSON Object, but got %s", jsondoc.Serialise(doc)), args)
	}
	var missing []string
	for _, key := range keys {
		if _, found := obj[key]; !found {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return node.withResult(ErrorResult(types.ErrMismatch,
			"The following expected entries were missing from the actual object: "+strings.Join(missing, ", ")), args)
	}
	return node.withResult(ValueResult(BoolValue(true)), args)
}
