package db

import (
	"database/sql"
	"fmt"
	"time"

	// mysql: 배포 환경, sqlite3: 로컬 실행 및 테스트
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/event"
)

var log = event.Log

// Config DBconn config
type Config struct {
	DriverName string
	ConnInfo   string

	TableName string
}

// DBconn db 연결정보
type DBconn struct {
	DriverName string
	ConnInfo   string

	TableName string

	db *sql.DB
}

// Item 이미지 단위 평가 결과
type Item struct {
	RunID           string
	Filename        string
	FilePath        string
	ActualAge       int
	ActualGender    int
	PredictedAge    float64
	PredictedGender float64
	GenderLabel     int
	CreateAt        time.Time
}

func (conn *DBconn) createTable() error {
	if _, err := conn.db.Exec(fmt.Sprintf(`CREATE TABLE %s (
		runid CHAR(36) NOT NULL,
		filename VARCHAR(255) NOT NULL,
		path VARCHAR(1024) NOT NULL,
		actualAge INT NOT NULL,
		actualGender INT NOT NULL,
		predictedAge DOUBLE NOT NULL,
		predictedGender DOUBLE NOT NULL,
		genderLabel INT NOT NULL,
		createAt DATETIME NOT NULL);`, conn.TableName)); err != nil {
		return err
	}

	return nil
}

func (conn *DBconn) existsTable() bool {
	rows, err := conn.db.Query(fmt.Sprintf("SELECT * FROM %s LIMIT 1;", conn.TableName))
	if err != nil {
		return false
	}
	rows.Close()

	return true
}

func (conn *DBconn) initTable() error {
	if !conn.existsTable() {
		log.Infof("db: create table %s", conn.TableName)
		return conn.createTable()
	}

	return nil
}

// Insert entry 삽입
func (conn *DBconn) Insert(item Item) error {
	createAt := item.CreateAt.UTC().Format("2006-01-02 15:04:05")

	_, err := conn.db.Exec(fmt.Sprintf(`INSERT INTO %s (
		runid,
		filename,
		path,
		actualAge,
		actualGender,
		predictedAge,
		predictedGender,
		genderLabel,
		createAt) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`, conn.TableName),
		item.RunID, item.Filename, item.FilePath, item.ActualAge, item.ActualGender,
		item.PredictedAge, item.PredictedGender, item.GenderLabel, createAt,
	)

	return err
}

// Get runID 의 평가 결과 반환
func (conn *DBconn) Get(runID string) ([]Item, error) {
	rows, err := conn.db.Query(fmt.Sprintf(`SELECT
		runid,
		filename,
		path,
		actualAge,
		actualGender,
		predictedAge,
		predictedGender,
		genderLabel
		FROM %s WHERE runid = ? ORDER BY filename;`, conn.TableName), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.RunID,
			&item.Filename,
			&item.FilePath,
			&item.ActualAge,
			&item.ActualGender,
			&item.PredictedAge,
			&item.PredictedGender,
			&item.GenderLabel,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Delete runID 의 평가 결과 삭제
func (conn *DBconn) Delete(runID string) (int64, error) {
	res, err := conn.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE runid = ?;", conn.TableName), runID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// Destroy db connection 해제
func (conn *DBconn) Destroy() error {
	return conn.db.Close()
}

// New 새로운 db connection 생성
func New(cfg Config) (*DBconn, error) {
	db, err := sql.Open(cfg.DriverName, cfg.ConnInfo)
	if err != nil {
		return nil, err
	}

	conn := &DBconn{
		DriverName: cfg.DriverName,
		ConnInfo:   cfg.ConnInfo,
		TableName:  cfg.TableName,
		db:         db,
	}

	if err := conn.initTable(); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}
