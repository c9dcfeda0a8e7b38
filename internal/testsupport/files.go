package testsupport

import (
	"testing"

	"github.com/spf13/afero"

	"webvideo/internal/config"
	"webvideo/internal/taskconfig"
)

// SeedTask writes the default task, adjusted by mutate, to the configured task
// file on fsys and returns a store over it. A nil fsys uses an in-memory
// filesystem.
func SeedTask(t testing.TB, cfg *config.Config, fsys afero.Fs, mutate func(*taskconfig.Task)) *taskconfig.Store {
	t.Helper()

	if fsys == nil {
		fsys = afero.NewMemMapFs()
	}
	task := taskconfig.Default()
	task.SavePath = BaseDir(cfg) + "/videos"
	if mutate != nil {
		mutate(&task)
	}
	store := taskconfig.NewStore(fsys, cfg.Paths.TaskFile)
	if err := store.Save(task); err != nil {
		t.Fatalf("seed task %s: %v", cfg.Paths.TaskFile, err)
	}
	return store
}
