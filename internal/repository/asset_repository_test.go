package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-authoring/internal/domain"
	"course-authoring/internal/repository"
)

func assetRepoContract(t *testing.T, courses repository.CourseRepository, assets repository.AssetRepository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	course := newCourse(now)
	require.NoError(t, courses.CreateCourse(ctx, course))

	t.Run("create and get asset", func(t *testing.T) {
		a := &domain.Asset{
			Handle:    uuid.New().String(),
			CourseID:  course.ID,
			MimeType:  "image/png",
			Data:      []byte{0x89, 'P', 'N', 'G'},
			CreatedAt: now,
		}
		require.NoError(t, assets.CreateAsset(ctx, a))

		got, err := assets.GetAsset(ctx, a.Handle)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, a.Data, got.Data)
		assert.Equal(t, "image/png", got.MimeType)
		assert.Equal(t, course.ID, got.CourseID)
	})

	t.Run("missing asset returns nil", func(t *testing.T) {
		got, err := assets.GetAsset(ctx, uuid.New().String())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unknown course", func(t *testing.T) {
		err := assets.CreateAsset(ctx, &domain.Asset{
			Handle:    uuid.New().String(),
			CourseID:  uuid.New().String(),
			MimeType:  "image/png",
			Data:      []byte{1},
			CreatedAt: now,
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestMemoryAssetRepository(t *testing.T) {
	courses := repository.NewMemoryCourseRepository()
	assetRepoContract(t, courses, repository.NewMemoryAssetRepository(courses))
}

func TestPostgresAssetRepository(t *testing.T) {
	testDB := newTestDB(t)

	assetRepoContract(t,
		repository.NewPostgresCourseRepository(testDB.Pool),
		repository.NewPostgresAssetRepository(testDB.Pool))
}

func TestPostgresOptionRepository(t *testing.T) {
	testDB := newTestDB(t)

	repo := repository.NewPostgresOptionRepository(testDB.Pool)
	defaults := repository.DefaultCatalog()

	for _, kind := range domain.OptionKinds {
		opts, err := repo.ListOptions(context.Background(), kind)
		require.NoError(t, err)
		assert.Equal(t, defaults[kind], opts, "seeded %s should match the default catalog", kind)
	}

	none, err := repo.ListOptions(context.Background(), domain.OptionKind("colours"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryOptionRepository(t *testing.T) {
	repo := repository.NewMemoryOptionRepository(repository.DefaultCatalog())
	levels, err := repo.ListOptions(context.Background(), domain.OptionLevels)
	require.NoError(t, err)
	assert.Len(t, levels, 3)

	levels[0].Label = "changed"
	again, _ := repo.ListOptions(context.Background(), domain.OptionLevels)
	assert.Equal(t, "Beginner", again[0].Label)
}
