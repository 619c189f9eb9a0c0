package store

import (
	"context"
	"strings"
	"time"
)

func parseSQLiteTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func (s *Store) GetCookieSetting(ctx context.Context) (*CookieSetting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, content, refresh_token, created_at, updated_at FROM cookie_settings ORDER BY id DESC LIMIT 1`)
	item := CookieSetting{}
	var createdAt string
	var updatedAt string
	if err := row.Scan(&item.ID, &item.Content, &item.RefreshToken, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.CreatedAt = parseSQLiteTime(createdAt)
	item.UpdatedAt = parseSQLiteTime(updatedAt)
	return &item, nil
}

func (s *Store) SaveCookieContent(ctx context.Context, content string) error {
	setting, err := s.GetCookieSetting(ctx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE cookie_settings SET content=?, updated_at=? WHERE id=?`, content, time.Now().UTC().Format(time.RFC3339Nano), setting.ID)
	return err
}

func (s *Store) SaveCookie(ctx context.Context, content string, refreshToken string) error {
	setting, err := s.GetCookieSetting(ctx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE cookie_settings SET content=?, refresh_token=?, updated_at=? WHERE id=?`, content, refreshToken, time.Now().UTC().Format(time.RFC3339Nano), setting.ID)
	return err
}

func (s *Store) SaveRefreshToken(ctx context.Context, refreshToken string) error {
	setting, err := s.GetCookieSetting(ctx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE cookie_settings SET refresh_token=?, updated_at=? WHERE id=?`, refreshToken, time.Now().UTC().Format(time.RFC3339Nano), setting.ID)
	return err
}

func (s *Store) CreateAPIErrorLog(ctx context.Context, item APIErrorLog) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO api_error_logs (
		endpoint, method, stage, http_status, request_query, response_body, error_message, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Endpoint,
		item.Method,
		item.Stage,
		item.HTTPStatus,
		item.RequestQuery,
		item.ResponseBody,
		item.ErrorMessage,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) ListAPIErrorLogs(ctx context.Context, limit int, endpointKeyword string) ([]APIErrorLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, endpoint, method, stage, http_status, request_query, response_body, error_message, created_at
		FROM api_error_logs`
	args := make([]any, 0, 2)
	endpointKeyword = strings.TrimSpace(endpointKeyword)
	if endpointKeyword != "" {
		query += ` WHERE endpoint LIKE ?`
		args = append(args, "%"+endpointKeyword+"%")
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]APIErrorLog, 0, limit)
	for rows.Next() {
		item := APIErrorLog{}
		var createdAt string
		if err := rows.Scan(&item.ID, &item.Endpoint, &item.Method, &item.Stage, &item.HTTPStatus, &item.RequestQuery, &item.ResponseBody, &item.ErrorMessage, &createdAt); err != nil {
			return nil, err
		}
		item.CreatedAt = parseSQLiteTime(createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}
