package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/history"
	"github.com/viant/kproc/service/dao/history/memory"
)

func TestHistory(t *testing.T) {
	testCases := []struct {
		name string
		new  func(t *testing.T) history.Service
	}{
		{name: "fs", new: func(t *testing.T) history.Service {
			srv, err := New(t.TempDir())
			require.NoError(t, err)
			return srv
		}},
		{name: "memory", new: func(t *testing.T) history.Service { return memory.New() }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			ctx := context.Background()
			srv := testCase.new(t)
			records := []*model.ExitRecord{
				{PID: 12, ParentPID: 1, Name: "worker", Status: 0, RunTicks: 5},
				{PID: 3, ParentPID: 1, Name: "sh", Status: 1},
				{PID: 7, ParentPID: 3, Name: "worker", Status: -1, Killed: true},
			}
			for _, record := range records {
				require.NoError(t, srv.Save(ctx, record))
			}
			assert.ErrorIs(t, srv.Save(ctx, nil), dao.ErrNilEntity)

			loaded, err := srv.Load(ctx, 12)
			require.NoError(t, err)
			assert.Equal(t, uint64(5), loaded.RunTicks)
			_, err = srv.Load(ctx, 99)
			assert.ErrorIs(t, err, dao.ErrNotFound)

			all, err := srv.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []int{3, 7, 12}, []int{all[0].PID, all[1].PID, all[2].PID})

			children, err := srv.List(ctx, dao.NewParameter("ParentPID", 1))
			require.NoError(t, err)
			require.Len(t, children, 2)
			assert.Equal(t, 3, children[0].PID)

			killed, err := srv.List(ctx, dao.NewParameter("Killed", true))
			require.NoError(t, err)
			require.Len(t, killed, 1)
			assert.Equal(t, 7, killed[0].PID)

			require.NoError(t, srv.Delete(ctx, 7))
			assert.ErrorIs(t, srv.Delete(ctx, 7), dao.ErrNotFound)
		})
	}
}

func TestService_RecordLocation(t *testing.T) {
	testCases := []struct {
		name     string
		basePath func(dir string) string
	}{
		{name: "path", basePath: func(dir string) string { return dir }},
		{name: "file URL", basePath: func(dir string) string { return "file://localhost" + dir }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			srv, err := New(testCase.basePath(dir))
			require.NoError(t, err)
			require.NoError(t, srv.Save(ctx, &model.ExitRecord{PID: 3, Name: "sh"}))

			_, err = os.Stat(filepath.Join(dir, "3.json"))
			require.NoError(t, err)
			records, err := srv.List(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "sh", records[0].Name)
		})
	}
}

func TestNew_EmptyPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
