package database

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/algoroom/algoroom/internal/database/models"
	"github.com/algoroom/algoroom/internal/setup/config"
	"github.com/bytedance/sonic"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunjson"
	"go.uber.org/zap"
)

// sonicProvider is a JSON provider that uses Sonic for encoding and decoding.
type sonicProvider struct{}

func (sonicProvider) Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func (sonicProvider) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

func (sonicProvider) NewEncoder(w io.Writer) bunjson.Encoder {
	return sonic.ConfigDefault.NewEncoder(w)
}

func (sonicProvider) NewDecoder(r io.Reader) bunjson.Decoder {
	return sonic.ConfigDefault.NewDecoder(r)
}

// Client defines the methods that a database client must implement.
type Client interface {
	// Users returns the user model operations.
	Users() *models.UserModel
	// Rooms returns the room model operations.
	Rooms() *models.RoomModel
	// DB returns the underlying bun.DB instance.
	DB() *bun.DB
	// Close gracefully shuts down the database connection.
	Close() error
}

// clientImpl represents the concrete implementation of the database client.
type clientImpl struct {
	db     *bun.DB
	users  *models.UserModel
	rooms  *models.RoomModel
	logger *zap.Logger
}

// NewConnection establishes a new database connection and returns a Client instance.
func NewConnection(cfg *config.PostgreSQL, logger *zap.Logger) (Client, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("algoroom"),
	))

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Minute)
	sqldb.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTime) * time.Minute)

	bunjson.SetProvider(sonicProvider{})

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(NewHook(logger.Named("db")))

	client := &clientImpl{
		db:     db,
		users:  models.NewUser(db, logger),
		rooms:  models.NewRoom(db, logger),
		logger: logger,
	}

	logger.Info("Database connection established")

	return client, nil
}

func (c *clientImpl) Users() *models.UserModel { return c.users }
func (c *clientImpl) Rooms() *models.RoomModel { return c.rooms }
func (c *clientImpl) DB() *bun.DB              { return c.db }

func (c *clientImpl) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	c.logger.Info("Database connection closed")

	return nil
}
