package course

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/italolelis/course_downloader/internal/catalog"
	"github.com/italolelis/course_downloader/internal/storage"
)

// job is one clip scheduled for download.
type job struct {
	course      *catalog.Course
	module      catalog.ModuleRef
	clip        catalog.Clip
	destination string
}

func (j job) record() storage.ClipRecord {
	return storage.ClipRecord{
		CourseName: j.course.Header.Name,
		CourseID:   j.course.Header.ID,
		ModuleID:   j.module.Module.ID,
		ClipID:     j.clip.ID,
		ClipTitle:  j.clip.Title,
		FilePath:   j.destination,
	}
}

// moduleJobs groups the jobs of one module so the module header can precede its clips.
type moduleJobs struct {
	module catalog.ModuleRef
	jobs   []job
}

// planner assigns every clip a destination no other clip of the run uses.
type planner struct {
	outputDir string
	seen      map[string]struct{}
}

func newPlanner(outputDir string) *planner {
	return &planner{outputDir: outputDir, seen: make(map[string]struct{})}
}

// plan builds the jobs for the clips of course accepted by keep. Destinations are assigned over
// the whole course before filtering, so a clip gets the same path whatever the selection.
func (p *planner) plan(course *catalog.Course, keep func(catalog.ModuleRef, catalog.Clip) bool) []moduleJobs {
	var groups []moduleJobs

	for _, ref := range course.IndexedModules() {
		group := moduleJobs{module: ref}

		for _, clip := range ref.Module.Clips {
			destination := p.destination(course, ref, clip)

			if keep != nil && !keep(ref, clip) {
				continue
			}

			group.jobs = append(group.jobs, job{
				course:      course,
				module:      ref,
				clip:        clip,
				destination: destination,
			})
		}

		if len(group.jobs) > 0 {
			groups = append(groups, group)
		}
	}

	return groups
}

// destination returns the clip path, appending the clip id when another clip already claimed
// the same path. Paths are compared case-insensitively.
func (p *planner) destination(course *catalog.Course, ref catalog.ModuleRef, clip catalog.Clip) string {
	path := catalog.VideoPath(p.outputDir, course.Header.Title, ref.Index, ref.Module.Title, clip)

	if p.take(path) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	for n := 0; ; n++ {
		suffix := " [" + catalog.SanitizeName(clip.ID) + "]"
		if n > 0 {
			suffix = " [" + catalog.SanitizeName(clip.ID) + "-" + strconv.Itoa(n) + "]"
		}

		candidate := base + suffix + ext
		if p.take(candidate) {
			return candidate
		}
	}
}

func (p *planner) take(path string) bool {
	key := strings.ToLower(filepath.Clean(path))
	if _, ok := p.seen[key]; ok {
		return false
	}

	p.seen[key] = struct{}{}

	return true
}
