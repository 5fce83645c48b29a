package mysql

import (
	"context"
	"fmt"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"Walcord/internal/model"
)

var DB *gorm.DB

func InitDB(dsn string) error {
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	DB = db
	return nil
}

// Ping 健康检查
func Ping(ctx context.Context) error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Migrate 自动建表（开发阶段 OK），feed 视图另外创建
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Follow{},
		&model.Friendship{},
		&model.SocialOutbox{},
		&model.Concert{},
		&model.ConcertMedia{},
		&model.Memory{},
		&model.MemoryMedia{},
		&model.Like{},
		&model.Comment{},
	); err != nil {
		return err
	}
	return CreateFeedViews(db)
}

// 每个父实体一行，时间取最新一条媒体。媒体带上时间和 id 一起聚合，
// JSON_ARRAYAGG 的元素顺序不确定，由读取方排序
var feedViews = []string{
	`CREATE OR REPLACE VIEW concert_feed AS
SELECT c.id AS parent_id,
       c.user_id AS author_id,
       (SELECT m2.user_id FROM concert_media m2 WHERE m2.concert_id = c.id
         ORDER BY m2.created_at ASC, m2.id ASC LIMIT 1) AS first_uploader_id,
       CONCAT_WS(' - ', c.artist_name, NULLIF(c.tour_name, '')) AS title,
       c.artist_name AS artist_name,
       COALESCE(c.tour_name, '') AS tour_name,
       CONCAT_WS(', ', NULLIF(c.venue, ''), NULLIF(c.city, '')) AS location,
       c.event_date AS event_date,
       JSON_ARRAYAGG(JSON_OBJECT('url', m.url, 'at', UNIX_TIMESTAMP(m.created_at), 'id', m.id)) AS media,
       c.like_count AS like_count,
       c.comment_count AS comment_count,
       MAX(m.created_at) AS created_at
FROM concerts c
JOIN concert_media m ON m.concert_id = c.id
GROUP BY c.id`,
	`CREATE OR REPLACE VIEW memory_feed AS
SELECT r.id AS parent_id,
       r.user_id AS author_id,
       (SELECT m2.user_id FROM memory_media m2 WHERE m2.memory_id = r.id
         ORDER BY m2.created_at ASC, m2.id ASC LIMIT 1) AS first_uploader_id,
       r.title AS title,
       COALESCE(r.artist_name, '') AS artist_name,
       '' AS tour_name,
       COALESCE(r.location, '') AS location,
       NULL AS event_date,
       JSON_ARRAYAGG(JSON_OBJECT('url', m.url, 'at', UNIX_TIMESTAMP(m.created_at), 'id', m.id)) AS media,
       r.like_count AS like_count,
       r.comment_count AS comment_count,
       MAX(m.created_at) AS created_at
FROM memories r
JOIN memory_media m ON m.memory_id = r.id
GROUP BY r.id`,
}

func CreateFeedViews(db *gorm.DB) error {
	for _, stmt := range feedViews {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create feed view: %w", err)
		}
	}
	return nil
}
