package sink

import (
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ServiceRow struct {
	gorm.Model

	ScanID string `gorm:"index"`
	Target string `gorm:"index"`
	Name   string
	Data   string
	Port   uint16
	Type   string
}

type MagnificationRow struct {
	gorm.Model

	ScanID        string `gorm:"index"`
	Target        string `gorm:"index"`
	Stage         string
	RequestBytes  int
	ResponseBytes int
	Magnification float64
}

type SummaryRow struct {
	gorm.Model

	ScanID               string `gorm:"uniqueIndex"`
	Target               string `gorm:"index"`
	Mode                 string
	Status               string
	InitialMagnification float64
	OverallMagnification float64
	TotalResponseBytes   uint64
	TotalRequestBytes    uint64
	ServiceCount         int
	ElapsedMillis        int64
}

// Database writes entries into a SQLite file through gorm.
type Database struct {
	db *gorm.DB
}

// OpenDatabase opens the SQLite file at path and migrates the result tables.
func OpenDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	// sqlite serialises writers; a single connection avoids SQLITE_BUSY
	// when parallel scans write at once.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to access database handle")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&ServiceRow{}, &MagnificationRow{}, &SummaryRow{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate result tables")
	}

	return &Database{db: db}, nil
}

func (d *Database) DB() *gorm.DB {
	return d.db
}

func (d *Database) WriteRecord(r Record) error {
	row := ServiceRow{ScanID: r.ScanID, Target: r.Target, Name: r.Name, Data: r.Data, Port: r.Port, Type: r.Type}
	return errors.Wrap(d.db.Create(&row).Error, "failed to insert service record")
}

func (d *Database) WriteMagnification(m Magnification) error {
	row := MagnificationRow{
		ScanID:        m.ScanID,
		Target:        m.Target,
		Stage:         m.Stage,
		RequestBytes:  m.RequestBytes,
		ResponseBytes: m.ResponseBytes,
		Magnification: m.Magnification,
	}
	return errors.Wrap(d.db.Create(&row).Error, "failed to insert magnification")
}

func (d *Database) WriteSummary(s Summary) error {
	row := SummaryRow{
		ScanID:               s.ScanID,
		Target:               s.Target,
		Mode:                 s.Mode,
		Status:               s.Status,
		InitialMagnification: s.InitialMagnification,
		OverallMagnification: s.OverallMagnification,
		TotalResponseBytes:   s.TotalResponseBytes,
		TotalRequestBytes:    s.TotalRequestBytes,
		ServiceCount:         s.ServiceCount,
		ElapsedMillis:        s.Elapsed.Milliseconds(),
	}
	return errors.Wrap(d.db.Create(&row).Error, "failed to insert summary")
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
