package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCourse() *Course {
	return &Course{
		Header: Header{ID: "course-1", Name: "go-fundamentals", Title: "Go Fundamentals"},
		Modules: []Module{
			{ID: "mod-1", Title: "Intro", Clips: []Clip{{ID: "clip-1", Title: "Hello", Index: 1}}},
			{ID: "mod-2", Title: "Concurrency", Clips: []Clip{
				{ID: "clip-2", Title: "Channels", Index: 1},
				{ID: "clip-3", Title: "Select", Index: 2},
			}},
		},
	}
}

func TestCourse_FindModule(t *testing.T) {
	course := testCourse()

	ref, err := course.FindModule("mod-2")
	require.NoError(t, err)
	assert.Equal(t, 2, ref.Index)
	assert.Equal(t, "Concurrency", ref.Module.Title)

	_, err = course.FindModule("mod-9")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestCourse_FindClip(t *testing.T) {
	course := testCourse()

	clip, ref, err := course.FindClip("clip-3")
	require.NoError(t, err)
	assert.Equal(t, "Select", clip.Title)
	assert.Equal(t, 2, ref.Index)

	_, _, err = course.FindClip("clip-9")
	assert.ErrorIs(t, err, ErrClipNotFound)
}

func TestCourse_IndexedModules(t *testing.T) {
	refs := testCourse().IndexedModules()

	require.Len(t, refs, 2)
	assert.Equal(t, 1, refs[0].Index)
	assert.Equal(t, 2, refs[1].Index)
	assert.Equal(t, 3, testCourse().ClipCount())
}
