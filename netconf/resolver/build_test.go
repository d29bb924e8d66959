package resolver

import (
	"context"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/xlnconf/netconf/netconf/ncerrors"
	"github.com/xlnconf/netconf/tree"
)

func TestBuildStrictXPathCreatesNestedTargetWithPredicate(t *testing.T) {
	target := tree.NewMapping()

	results, err := Build(context.Background(), `/interfaces/interface[name="eth1"]`, target, nil, nil, nil, false)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "eth1", results[0].Get("name").Str)
	assert.Equal(t, "eth1", target.Get("interfaces").Get("interface").Get("name").Str)
}

func TestBuildStrictXPathInjectsNamespaceOnFirstSegment(t *testing.T) {
	target := tree.NewMapping()

	_, err := Build(context.Background(), `/interfaces/interface[name="eth1"]`, target, nil, WithNamespace("http://x"), nil, false)
	assert.NoError(t, err)

	ifs := target.Get("interfaces")
	assert.Equal(t, "http://x", ifs.Get(tree.AttrsKey).Get("xmlns").Str)
	assert.Equal(t, "eth1", ifs.Get("interface").Get("name").Str)
}

// schemaWithTwoTerminals has two independent branches each leading to a
// "terminal" mapping that itself contains a "config-item".
func schemaWithTwoTerminals(ctx context.Context) (*tree.Node, error) {
	branchA := tree.NewMapping()
	branchA.Set("terminal", mapping("config-item", tree.NewString("a")))

	branchB := tree.NewMapping()
	branchB.Set("terminal", mapping("config-item", tree.NewString("b")))

	root := tree.NewMapping()
	root.Set("branchA", branchA)
	root.Set("branchB", branchB)
	return root, nil
}

func TestBuildSchemaPathYieldsOneResultPerBranch(t *testing.T) {
	results, err := Build(context.Background(), `//terminal/*/config-item[key="name"]`, tree.NewMapping(), schemaWithTwoTerminals, nil, nil, true)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
}

// schemaYieldingTwoBranches has two sibling mappings each containing a
// directly-addressable "key" leaf beneath a "wildcard" child.
func schemaYieldingTwoBranches(ctx context.Context) (*tree.Node, error) {
	branchA := mapping("wildcard", mapping("key", tree.NewString("a")))
	branchB := mapping("wildcard", mapping("key", tree.NewString("b")))
	root := tree.NewMapping()
	root.Set("branchA", branchA)
	root.Set("branchB", branchB)
	return root, nil
}

func TestBuildSchemaPathRejectsMultipleTargetsUnlessAllowed(t *testing.T) {
	_, err := Build(context.Background(), "//wildcard/key", tree.NewMapping(), schemaYieldingTwoBranches, nil, nil, false)
	assert.Error(t, err)
	var multi *ncerrors.MultipleEditError
	assert.ErrorAs(t, err, &multi)
	assert.Equal(t, 2, multi.Count)
}

func TestBuildSchemaPathAllowsMultipleTargetsWhenEnabled(t *testing.T) {
	results, err := Build(context.Background(), "//wildcard/key", tree.NewMapping(), schemaYieldingTwoBranches, nil, nil, true)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBuildRejectsEmptyOrRootOnlyXPath(t *testing.T) {
	for _, xp := range []string{"", "/", "//"} {
		_, err := Build(context.Background(), xp, tree.NewMapping(), nil, nil, nil, false)
		assert.Error(t, err)
		var ncErr *ncerrors.Error
		assert.ErrorAs(t, err, &ncErr)
		assert.Equal(t, ncerrors.KindInvalidArgument, ncErr.Kind)
	}
}

func TestBuildRejectsUnionOperator(t *testing.T) {
	_, err := Build(context.Background(), "/a|/b", tree.NewMapping(), nil, nil, nil, false)
	assert.Error(t, err)
}

func TestBuildFallsThroughToSchemaPathWhenSegmentFailsGrammar(t *testing.T) {
	calls := 0
	schema := func(ctx context.Context) (*tree.Node, error) {
		calls++
		return mapping("not(valid)", mapping("leaf", tree.NewString("v"))), nil
	}

	_, err := Build(context.Background(), `/not(valid)/leaf`, tree.NewMapping(), schema, nil, nil, false)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuildSchemaFetchEmptyIsSemanticError(t *testing.T) {
	empty := func(ctx context.Context) (*tree.Node, error) { return nil, nil }
	_, err := Build(context.Background(), "//a/b", tree.NewMapping(), empty, nil, nil, false)
	assert.Error(t, err)
	var ncErr *ncerrors.Error
	assert.ErrorAs(t, err, &ncErr)
	assert.Equal(t, ncerrors.KindSemantic, ncErr.Kind)
}

func TestBuildIsReferentiallyDeterministic(t *testing.T) {
	run := func() []*tree.Node {
		results, err := Build(context.Background(), `/interfaces/interface[name="eth1"]`, tree.NewMapping(), nil, nil, nil, false)
		assert.NoError(t, err)
		return results
	}
	a := run()
	b := run()
	assert.Equal(t, a[0].Get("name").Str, b[0].Get("name").Str)
}
