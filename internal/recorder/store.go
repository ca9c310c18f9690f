package recorder

import (
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"main/internal/algo/arbitrage"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// StoreOption defines connection options for the PostgreSQL snapshot sink.
type StoreOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

type snapshotRow struct {
	ID           uint      `gorm:"primaryKey"`
	RecordedAt   time.Time `gorm:"index"`
	Pair         string    `gorm:"index"`
	Size         float64
	MinAskMarket string
	MaxBidMarket string
	MinAskAt     time.Time
	MaxBidAt     time.Time
	MinAsk       float64
	MaxBid       float64
	SpreadBp     float64
}

func (snapshotRow) TableName() string { return "arb_snapshots" }

// Store persists snapshots to PostgreSQL.
type Store struct {
	opt StoreOption
	db  *gorm.DB
	now func() time.Time
}

// NewStore opens the connection pool and migrates the snapshot table.
func NewStore(option StoreOption) (*Store, error) {
	connString, err := option.dsn()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, err
	}

	return &Store{opt: option, db: db, now: time.Now}, nil
}

// Record inserts one snapshot row.
func (s *Store) Record(mamb arbitrage.MinAskMaxBid) error {
	minAsk, maxBid := mamb.MinAsk(), mamb.MaxBid()
	row := snapshotRow{
		RecordedAt:   s.now().UTC(),
		Pair:         minAsk.Pair.String(),
		Size:         mamb.Size(),
		MinAskMarket: string(minAsk.Market),
		MaxBidMarket: string(maxBid.Market),
		MinAskAt:     minAsk.Timestamp.UTC(),
		MaxBidAt:     maxBid.Timestamp.UTC(),
		MinAsk:       minAsk.AskPrice,
		MaxBid:       maxBid.BidPrice,
		SpreadBp:     mamb.SpreadBp(),
	}
	return s.db.Create(&row).Error
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt StoreOption) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	if len(query) != 0 {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
