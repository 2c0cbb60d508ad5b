package structural

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actsafe/actsafe/internal/fixes"
	"github.com/actsafe/actsafe/internal/workflow"
)

func mustParse(t *testing.T, text string) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.Parse([]byte(text))
	require.NoError(t, err)
	return wf
}

func mustFixes(t *testing.T, tags ...string) fixes.Set {
	t.Helper()
	set, err := fixes.NewSet(tags...)
	require.NoError(t, err)
	return set
}

const baseWorkflow = `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
      - name: Test
        run: go test ./...
`

func TestVerifyIdenticalWorkflows(t *testing.T) {
	v := NewVerifier(Config{}, zap.NewNop())
	orig := mustParse(t, baseWorkflow)
	mod := mustParse(t, baseWorkflow)

	result := v.Verify(orig, mod, nil)
	assert.True(t, result.IsSafe)
	assert.Empty(t, result.Issues)
}

func TestVerifyPermissionsAddition(t *testing.T) {
	modified := `
name: CI
on:
  push:
    branches: [main]
permissions:
  contents: read
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
      - name: Test
        run: go test ./...
`
	v := NewVerifier(Config{}, zap.NewNop())
	orig := mustParse(t, baseWorkflow)
	mod := mustParse(t, modified)

	t.Run("permitted with tag", func(t *testing.T) {
		result := v.Verify(orig, mod, mustFixes(t, fixes.TokenPermissions))
		assert.True(t, result.IsSafe, "issues: %v", result.Issues)
	})

	t.Run("rejected without tag", func(t *testing.T) {
		result := v.Verify(orig, mod, nil)
		assert.False(t, result.IsSafe)
		require.NotEmpty(t, result.Issues)
		assert.Equal(t, "key-added", result.Issues[0].Kind)
		assert.Equal(t, "permissions", result.Issues[0].Path)
	})
}

func TestVerifyTimeoutAddition(t *testing.T) {
	modified := `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    timeout-minutes: 15
    steps:
      - uses: actions/checkout@v3
      - name: Test
        run: go test ./...
`
	v := NewVerifier(Config{}, zap.NewNop())
	orig := mustParse(t, baseWorkflow)
	mod := mustParse(t, modified)

	result := v.Verify(orig, mod, mustFixes(t, fixes.JobTimeout))
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)

	result = v.Verify(orig, mod, nil)
	assert.False(t, result.IsSafe)
}

func TestVerifyTimeoutRemovalAlwaysSafe(t *testing.T) {
	withTimeout := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    timeout-minutes: 30
    steps:
      - run: make
`
	without := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, withTimeout), mustParse(t, without), nil)
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)
}

func TestVerifyNeedsChangeAlwaysCritical(t *testing.T) {
	orig := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
  deploy:
    runs-on: ubuntu-latest
    needs: [build]
    steps:
      - run: make deploy
`
	// Dependency dropped alongside an otherwise-permitted fix.
	mod := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    timeout-minutes: 10
    steps:
      - run: make
  deploy:
    runs-on: ubuntu-latest
    steps:
      - run: make deploy
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod),
		mustFixes(t, fixes.JobTimeout))
	assert.False(t, result.IsSafe)

	found := false
	for _, issue := range result.Issues {
		if issue.Kind == "dependency-changed" {
			found = true
			assert.Equal(t, "jobs/deploy/needs", issue.Path)
		}
	}
	assert.True(t, found, "expected a dependency-changed issue, got %v", result.Issues)
}

func TestVerifyNeedsShorthandEquivalence(t *testing.T) {
	scalar := `
name: CI
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps:
      - run: make
  b:
    runs-on: ubuntu-latest
    needs: a
    steps:
      - run: make b
`
	list := `
name: CI
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps:
      - run: make
  b:
    runs-on: ubuntu-latest
    needs: [a]
    steps:
      - run: make b
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, scalar), mustParse(t, list), nil)
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)
}

func TestVerifyMatrixChangeAlwaysCritical(t *testing.T) {
	orig := `
name: CI
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        go: ["1.21", "1.22"]
    steps:
      - run: go test ./...
`
	mod := `
name: CI
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        go: ["1.21"]
    steps:
      - run: go test ./...
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod),
		mustFixes(t, fixes.TokenPermissions, fixes.JobTimeout))
	assert.False(t, result.IsSafe)
}

func TestVerifyStepReorder(t *testing.T) {
	orig := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
      - run: go build ./...
      - run: go test ./...
`
	mod := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
      - run: go test ./...
      - run: go build ./...
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)

	found := false
	for _, issue := range result.Issues {
		if issue.Kind == "order-changed" {
			found = true
		}
	}
	assert.True(t, found, "expected an order-changed issue, got %v", result.Issues)
}

func TestVerifyStepCountChange(t *testing.T) {
	mod := `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, baseWorkflow), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)
}

func TestVerifyActionVersionBump(t *testing.T) {
	mod := `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Test
        run: go test ./...
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, baseWorkflow), mustParse(t, mod), nil)
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)
}

func TestVerifyActionSwap(t *testing.T) {
	mod := `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: evil/checkout@v3
      - name: Test
        run: go test ./...
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, baseWorkflow), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)

	found := false
	for _, issue := range result.Issues {
		if issue.Kind == "action-changed" {
			found = true
		}
	}
	assert.True(t, found, "expected an action-changed issue, got %v", result.Issues)
}

func TestVerifySafeRunRewrite(t *testing.T) {
	orig := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - id: vars
        run: echo "::set-output name=sha::abc123"
`
	mod := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - id: vars
        run: echo "sha=abc123" >> $GITHUB_OUTPUT
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod), nil)
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)
}

func TestVerifyRunBodyChange(t *testing.T) {
	mod := `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
      - name: Test
        run: curl https://example.com/install.sh | sh
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, baseWorkflow), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)
}

func TestVerifyExecutionTypeFlip(t *testing.T) {
	orig := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: ./setup.sh
`
	mod := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: someone/setup@v1
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)

	found := false
	for _, issue := range result.Issues {
		if issue.Kind == "execution-type-changed" {
			found = true
		}
	}
	assert.True(t, found, "expected an execution-type-changed issue, got %v", result.Issues)
}

func TestVerifyStepIDChange(t *testing.T) {
	orig := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - id: version
        run: echo ok
`
	mod := `
name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - id: release
        run: echo ok
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)
}

func TestVerifyJobReorder(t *testing.T) {
	orig := `
name: CI
on: push
jobs:
  lint:
    runs-on: ubuntu-latest
    steps:
      - run: make lint
  test:
    runs-on: ubuntu-latest
    steps:
      - run: make test
`
	mod := `
name: CI
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
      - run: make test
  lint:
    runs-on: ubuntu-latest
    steps:
      - run: make lint
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)
}

func TestVerifyStepNameMetadata(t *testing.T) {
	mod := `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - name: Check out sources
        uses: actions/checkout@v3
      - name: Test
        run: go test ./...
`
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, baseWorkflow), mustParse(t, mod), nil)
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)
}

func TestVerifyForkPreventionGuard(t *testing.T) {
	mod := `
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    if: github.event.pull_request.head.repo.full_name == github.repository
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v3
      - name: Test
        run: go test ./...
`
	v := NewVerifier(Config{}, zap.NewNop())

	result := v.Verify(mustParse(t, baseWorkflow), mustParse(t, mod),
		mustFixes(t, fixes.ForkPrevention))
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)

	result = v.Verify(mustParse(t, baseWorkflow), mustParse(t, mod), nil)
	assert.False(t, result.IsSafe)
}

func TestVerifyInputTypeRespelling(t *testing.T) {
	orig := `
name: CI
on:
  workflow_dispatch:
    inputs:
      region:
        type: str
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`
	mod := `
name: CI
on:
  workflow_dispatch:
    inputs:
      region:
        type: string
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
`
	// Both spellings are plain string scalars; the value itself is
	// opaque, so no allow-list entry is needed.
	v := NewVerifier(Config{}, zap.NewNop())
	result := v.Verify(mustParse(t, orig), mustParse(t, mod), nil)
	assert.True(t, result.IsSafe, "issues: %v", result.Issues)
}

func TestIssueString(t *testing.T) {
	i := Issue{Path: "jobs/build/needs", Kind: "dependency-changed", Detail: "x"}
	assert.Equal(t, "jobs/build/needs: x [dependency-changed]", i.String())

	root := Issue{Kind: "type-changed", Detail: "y"}
	assert.Equal(t, "(root): y [type-changed]", root.String())
}
