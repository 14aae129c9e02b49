package config

import (
	"os"

	"feastflow-api/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// JWTSecret used to sign tokens, read from env or fallback
var JWTSecret = []byte(getEnv("JWT_SECRET", "feastflow_super_secret_2026"))

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TaxRate is the sales tax rate applied at checkout.
func TaxRate() decimal.Decimal {
	return decimalEnv("TAX_RATE", "0.08")
}

// DeliveryFee is the flat delivery fee applied at checkout.
func DeliveryFee() decimal.Decimal {
	return decimalEnv("DELIVERY_FEE", "3.00")
}

// DriverSpeedKmh feeds the development routing collaborator.
func DriverSpeedKmh() float64 {
	d := decimalEnv("DRIVER_SPEED_KMH", "30")
	return d.InexactFloat64()
}

func decimalEnv(key, fallback string) decimal.Decimal {
	raw := getEnv(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		logrus.WithField(key, raw).Warn("invalid decimal in env, using default")
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

// InitDB opens the database and migrates the schema.
func InitDB() {
	var err error
	DB, err = gorm.Open(sqlite.Open(getEnv("DB_PATH", "feastflow.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}

	if err := Migrate(DB); err != nil {
		logrus.WithError(err).Fatal("failed to migrate database")
	}

	logrus.Info("database connected and migrated")
}

// Migrate applies the schema to the given connection. Split out so tests can
// run against an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.MenuItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.TrackingEvent{},
	)
}
