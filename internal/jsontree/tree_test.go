package jsontree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testLookupPayload = `{"data":{"status":200,"reseller":{"nickname":"Bob","id":42,"tags":["a","b"],"active":true,"missing":null}}}`

func TestLookupFollowsDottedPaths(testingT *testing.T) {
	tree, parseErr := Parse([]byte(testLookupPayload))
	require.NoError(testingT, parseErr)

	testCases := []struct {
		name         string
		path         string
		expectedText string
		expectedOK   bool
	}{
		{name: "nested string", path: "data.reseller.nickname", expectedText: "Bob", expectedOK: true},
		{name: "number", path: "data.reseller.id", expectedText: "42", expectedOK: true},
		{name: "array index", path: "data.reseller.tags.1", expectedText: "b", expectedOK: true},
		{name: "bool", path: "data.reseller.active", expectedText: "true", expectedOK: true},
		{name: "missing leaf", path: "data.reseller.url", expectedOK: false},
		{name: "missing branch", path: "data.owner.nickname", expectedOK: false},
		{name: "through scalar", path: "data.status.value", expectedOK: false},
		{name: "array out of range", path: "data.reseller.tags.7", expectedOK: false},
		{name: "null leaf", path: "data.reseller.missing", expectedOK: false},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(t *testing.T) {
			node, found := tree.Lookup(testCase.path)
			text, isText := node.Text()
			require.Equal(t, testCase.expectedOK, found && isText)
			if testCase.expectedOK {
				require.Equal(t, testCase.expectedText, text)
			}
		})
	}
}

func TestNumberRejectsNumericStrings(testingT *testing.T) {
	tree, parseErr := Parse([]byte(`{"a":200,"b":"200"}`))
	require.NoError(testingT, parseErr)

	numericNode, _ := tree.Lookup("a")
	numeric, isNumber := numericNode.Number()
	require.True(testingT, isNumber)
	require.Equal(testingT, float64(200), numeric)

	stringNode, _ := tree.Lookup("b")
	_, isNumber = stringNode.Number()
	require.False(testingT, isNumber)
}

func TestParseRejectsMalformedPayloads(testingT *testing.T) {
	_, parseErr := Parse([]byte("<html>bad gateway</html>"))
	require.Error(testingT, parseErr)

	_, parseErr = Parse([]byte(`{"a":1} {"b":2}`))
	require.ErrorIs(testingT, parseErr, ErrTrailingInput)
}

func TestEmptyPathReturnsRoot(testingT *testing.T) {
	tree := From(map[string]any{"a": "b"})
	root, found := tree.Lookup("  ")
	require.True(testingT, found)
	require.True(testingT, root.IsObject())
	require.False(testingT, Value{}.IsObject())
	require.True(testingT, Value{}.IsNull())
}

func TestTruthyFollowsScriptCoercion(testingT *testing.T) {
	testCases := []struct {
		payload  string
		expected bool
	}{
		{payload: `null`, expected: false},
		{payload: `false`, expected: false},
		{payload: `0`, expected: false},
		{payload: `""`, expected: false},
		{payload: `true`, expected: true},
		{payload: `-1`, expected: true},
		{payload: `"0"`, expected: true},
		{payload: `{}`, expected: true},
		{payload: `[]`, expected: true},
	}

	for _, testCase := range testCases {
		tree, parseErr := Parse([]byte(testCase.payload))
		require.NoError(testingT, parseErr)
		require.Equal(testingT, testCase.expected, tree.Truthy(), testCase.payload)
	}
	require.False(testingT, Value{}.Truthy())
}
