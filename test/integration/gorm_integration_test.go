package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"bizinsight-be/internal/entity"
	"bizinsight-be/internal/model"
	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/internal/repository/specification"
	"bizinsight-be/internal/repository/unitofwork"
	"bizinsight-be/pkg/database"
	"bizinsight-be/pkg/insight/executor"
	"bizinsight-be/pkg/insight/schema"
	"bizinsight-be/pkg/insight/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, database.DefaultPoolConfig())
	require.NoError(t, err, "Failed to connect to DB")

	require.NoError(t, db.AutoMigrate(&model.Conversation{}, &model.Message{}))
	return db
}

func TestConversationRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(db)

	userId := uuid.New()
	conversation := &entity.Conversation{
		Id:        uuid.New(),
		Title:     "Integration conversation",
		UserId:    userId,
		TotalCost: decimal.Zero,
		CreatedAt: time.Now(),
	}

	uow := uowFactory.NewUnitOfWork(ctx)
	require.NoError(t, uow.ConversationRepository().Create(ctx, conversation))
	t.Cleanup(func() {
		db.Exec("DELETE FROM messages WHERE conversation_id = ?", conversation.Id)
		db.Unscoped().Delete(&model.Conversation{}, "id = ?", conversation.Id)
	})

	t.Run("Transactional message append updates totals", func(t *testing.T) {
		uow := uowFactory.NewUnitOfWork(ctx)
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		elapsed := int64(900)
		require.NoError(t, uow.MessageRepository().Create(ctx, &entity.Message{
			Id:             uuid.New(),
			ConversationId: conversation.Id,
			Role:           "assistant",
			Type:           "data_result",
			Content:        "# Results",
			TotalTokens:    120,
			Cost:           decimal.RequireFromString("0.000420"),
			SQLResult:      []map[string]interface{}{{"total": float64(3)}},
			ProcessingTime: &elapsed,
			CreatedAt:      time.Now(),
		}))

		totals, err := uow.MessageRepository().SumTotals(ctx, conversation.Id)
		require.NoError(t, err)
		require.NoError(t, uow.ConversationRepository().UpdateTotals(ctx, conversation.Id, totals.TotalTokens, totals.TotalCost))
		require.NoError(t, uow.Commit())

		found, err := uowFactory.NewUnitOfWork(ctx).ConversationRepository().FindOne(ctx,
			specification.ByID{ID: conversation.Id},
			specification.UserOwnedBy{UserID: userId},
		)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 120, found.TotalTokens)
		assert.True(t, decimal.RequireFromString("0.00042").Equal(found.TotalCost))
	})

	t.Run("Soft delete hides conversation", func(t *testing.T) {
		repo := uowFactory.NewUnitOfWork(ctx).ConversationRepository()
		require.NoError(t, repo.Delete(ctx, conversation.Id))

		found, err := repo.FindOne(ctx, specification.ByID{ID: conversation.Id})
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestPipelineAgainstPostgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS it_orders (id serial PRIMARY KEY, amount numeric(10,2) NOT NULL)`).Error)
	t.Cleanup(func() { db.Exec("DROP TABLE IF EXISTS it_orders") })
	require.NoError(t, db.Exec(`INSERT INTO it_orders (amount) VALUES (10.50), (20.25)`).Error)

	introspector := schema.NewSchemaIntrospector(schema.NewPostgresCatalog(db, "public"), []string{"it_order"}, 2, logger.NewNopLogger())
	tables := introspector.Introspect(ctx)
	require.Len(t, tables, 1)
	assert.Equal(t, "it_orders", tables[0].TableName)

	v := validator.NewSQLValidator(validator.NewGormPlanner(db), logger.NewNopLogger())
	assert.True(t, v.Validate(ctx, "SELECT SUM(amount) AS total FROM it_orders", tables).IsValid)
	assert.False(t, v.Validate(ctx, "SELECT nope FROM it_orders", tables).IsValid)

	planner := validator.NewGormPlanner(db)
	assert.Error(t, planner.Explain(ctx, "SELECT 1 FROM it_orders; CREATE TABLE it_pwn (id int)"))
	var created int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'it_pwn'`).Scan(&created).Error)
	assert.Zero(t, created, "the dry run must never run a second statement")

	exec := executor.NewQueryExecutor(executor.NewGormRunner(db), 5*time.Second, 1000, logger.NewNopLogger())
	rows, err := exec.Execute(ctx, "SELECT COUNT(*) AS n FROM it_orders")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = exec.Execute(ctx, "INSERT INTO it_orders (amount) VALUES (1)")
	assert.Error(t, err, "read-only transaction must reject writes")
}
