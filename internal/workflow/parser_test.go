package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicWorkflow(t *testing.T) {
	text := `
name: CI
on:
  push:
    branches: [main, release/*]
    paths:
      - "src/**"
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
      - name: Test
        id: test
        run: go test ./...
`
	wf, err := Parse([]byte(text))
	require.NoError(t, err)

	assert.Equal(t, "CI", wf.Name)
	require.Len(t, wf.Triggers, 1)
	assert.Equal(t, "push", wf.Triggers[0].Event)
	assert.Equal(t, []string{"main", "release/*"}, wf.Triggers[0].Branches)
	assert.Equal(t, []string{"src/**"}, wf.Triggers[0].Paths)

	require.Len(t, wf.Jobs, 1)
	job := wf.Job("build")
	require.NotNil(t, job)
	require.Len(t, job.Steps, 2)
	assert.Equal(t, "actions/checkout@v3", job.Steps[0].Uses)
	assert.True(t, job.Steps[0].IsAction())
	assert.Equal(t, "test", job.Steps[1].ID)
	assert.Equal(t, "go test ./...", job.Steps[1].Run)
	assert.False(t, job.Steps[1].IsAction())
}

func TestParseTriggerShorthandForms(t *testing.T) {
	scalar := "on: push\njobs: {}\n"
	list := "on: [push]\njobs: {}\n"
	mapping := "on:\n  push: {}\njobs: {}\n"
	explicitNull := "on:\n  push:\njobs: {}\n"

	var roots []*Node
	for _, text := range []string{scalar, list, mapping, explicitNull} {
		wf, err := Parse([]byte(text))
		require.NoError(t, err)
		require.Len(t, wf.Triggers, 1)
		assert.Equal(t, "push", wf.Triggers[0].Event)
		roots = append(roots, wf.Root.Get("on"))
	}

	for _, other := range roots[1:] {
		assert.True(t, roots[0].Equal(other),
			"all shorthand forms must normalize to the same tree")
	}
}

func TestParseNeedsShorthand(t *testing.T) {
	scalar := `
on: push
jobs:
  a:
    steps:
      - run: make
  b:
    needs: a
    steps:
      - run: make b
`
	list := `
on: push
jobs:
  a:
    steps:
      - run: make
  b:
    needs: [a]
    steps:
      - run: make b
`
	wfScalar, err := Parse([]byte(scalar))
	require.NoError(t, err)
	wfList, err := Parse([]byte(list))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, wfScalar.Job("b").Needs)
	assert.True(t,
		wfScalar.Root.Get("jobs").Get("b").Get("needs").Equal(
			wfList.Root.Get("jobs").Get("b").Get("needs")))
}

func TestParseJobOrderPreserved(t *testing.T) {
	text := `
on: push
jobs:
  zeta:
    steps: [{run: z}]
  alpha:
    steps: [{run: a}]
  mid:
    steps: [{run: m}]
`
	wf, err := Parse([]byte(text))
	require.NoError(t, err)
	require.Len(t, wf.Jobs, 3)
	assert.Equal(t, "zeta", wf.Jobs[0].ID)
	assert.Equal(t, "alpha", wf.Jobs[1].ID)
	assert.Equal(t, "mid", wf.Jobs[2].ID)
}

func TestParseJobFields(t *testing.T) {
	text := `
on: push
jobs:
  deploy:
    runs-on: ubuntu-latest
    if: github.ref == 'refs/heads/main'
    needs: [build, test]
    timeout-minutes: 30
    strategy:
      matrix:
        region: [eu, us]
    steps:
      - run: make deploy
`
	wf, err := Parse([]byte(text))
	require.NoError(t, err)

	job := wf.Job("deploy")
	require.NotNil(t, job)
	assert.Equal(t, "github.ref == 'refs/heads/main'", job.If)
	assert.Equal(t, []string{"build", "test"}, job.Needs)
	assert.Equal(t, "30", job.Timeout)
	require.NotNil(t, job.Matrix)
	assert.Equal(t, []string{"eu", "us"}, job.Matrix.Get("region").StringValues())
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("{unclosed"))
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestParseNonMappingRoot(t *testing.T) {
	_, err := Parse([]byte("- just\n- a\n- list\n"))
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestParseUnknownJobLookup(t *testing.T) {
	wf, err := Parse([]byte("on: push\njobs: {}\n"))
	require.NoError(t, err)
	assert.Nil(t, wf.Job("ghost"))
}
