package events

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSucceed(t *testing.T) {
	e := New("PRO-01", "REMOVE_SCHEMA_VALIDATION")
	assert.Equal(t, StatusUnknown, e.Status)
	assert.Nil(t, e.Ends)

	e.Succeed()
	assert.Equal(t, StatusSuccess, e.Status)
	require.NotNil(t, e.Ends)
}

func TestEventTerminalStatusIsSetOnce(t *testing.T) {
	e := New("X", "X")
	e.Fail("boom", map[string]any{"collection": "users"})
	e.Succeed()

	assert.Equal(t, StatusFailure, e.Status)
	assert.Equal(t, "boom", e.Data["error"])
	assert.Equal(t, "users", e.Data["collection"])
}

func TestEventFailureRollsUp(t *testing.T) {
	root := New("root", "PROCESS")
	mid := root.Child("mid", "EXECUTE_MIGRATIONS")
	leaf := mid.Child("leaf", "EXECUTE_MIGRATION_FILE")
	leaf.Fail("pipeline rejected", nil)

	assert.True(t, root.Failed())

	mid.Succeed()
	root.Succeed()
	assert.Equal(t, StatusFailure, mid.Status)
	assert.Equal(t, StatusFailure, root.Status)
}

func TestEventAppendIgnoresDuplicatesAndNil(t *testing.T) {
	root := New("root", "PROCESS")
	child := root.Child("c", "CHILD")
	root.Append(child, nil)

	assert.Len(t, root.SubEvents, 1)
	assert.Equal(t, []string{"CHILD"}, root.SubTypes())
}

func TestEventFind(t *testing.T) {
	root := New("root", "A")
	root.Child("b", "B").Child("c", "C")

	require.NotNil(t, root.Find("C"))
	assert.Equal(t, "c", root.Find("C").ID)
	assert.Nil(t, root.Find("D"))
}

func TestWrapBuildsBreadcrumb(t *testing.T) {
	inner := Failf(New("TYP-07", "CIRCULAR_TYPE_REFERENCE"), KindCircularReference, "circular type reference")
	parent := New("PRO-06", "APPLY_SCHEMA_VALIDATION")

	err := Wrap(parent, inner, "render failed")

	assert.Equal(t, StatusFailure, parent.Status)
	require.Len(t, parent.SubEvents, 1)
	assert.Same(t, inner.Event, parent.SubEvents[0])
	assert.True(t, errors.Is(err, ErrCircularReference))
	assert.Equal(t, KindCircularReference, KindOf(err))
	assert.Same(t, parent, Capture(err))
}

func TestWrapForeignError(t *testing.T) {
	parent := New("MON-05", "UPSERT")
	err := Wrap(parent, fmt.Errorf("socket closed"), "upsert failed")

	assert.Equal(t, KindInternal, err.Kind)
	assert.Equal(t, "socket closed", parent.Data["cause"])
	assert.Equal(t, "upsert failed", parent.Data["error"])
}

func TestCaptureForeignError(t *testing.T) {
	e := Capture(errors.New("plain"))
	assert.Equal(t, StatusFailure, e.Status)
	assert.Equal(t, "plain", e.Data["error"])
}
