// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"faq-rag-api/internal/domain/entity"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// AnalyticsRepository 会话统计（聚合 SQL 由 squirrel 构建）
type AnalyticsRepository struct {
	client *Client
}

func NewAnalyticsRepository(client *Client) *AnalyticsRepository {
	return &AnalyticsRepository{client: client}
}

type analyticsRow struct {
	TotalMessages     int64
	UserMessages      int64
	AssistantMessages int64
	AvgLatencyMs      *float64
	TokensIn          int64
	TokensOut         int64
	TokensUsed        int64
	PositiveFeedback  int64
	NegativeFeedback  int64
	AvgRetrievalScore *float64
}

type answerTypeRow struct {
	AnswerType string
	Total      int64
}

func (r *AnalyticsRepository) SessionAnalytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error) {
	ctx, span := tracer.Start(ctx, "postgres.AnalyticsRepository.SessionAnalytics")
	defer span.End()

	db := getDB(ctx, r.client.db)

	query, args, err := buildSummaryQuery(sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build analytics query: %w", err)
	}
	var row analyticsRow
	if err := db.Raw(query, args...).Scan(&row).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query session analytics: %w", err)
	}

	query, args, err = buildAnswerTypeQuery(sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build answer type query: %w", err)
	}
	var rows []answerTypeRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query answer type breakdown: %w", err)
	}

	out := &entity.SessionAnalytics{
		SessionID:           sessionID,
		TotalMessages:       row.TotalMessages,
		UserMessages:        row.UserMessages,
		AssistantMessages:   row.AssistantMessages,
		AvgLatencyMs:        row.AvgLatencyMs,
		TokensIn:            row.TokensIn,
		TokensOut:           row.TokensOut,
		TokensUsed:          row.TokensUsed,
		PositiveFeedback:    row.PositiveFeedback,
		NegativeFeedback:    row.NegativeFeedback,
		AvgRetrievalScore:   row.AvgRetrievalScore,
		AnswerTypeBreakdown: make(map[string]int64, len(rows)),
	}
	for _, at := range rows {
		out.AnswerTypeBreakdown[at.AnswerType] = at.Total
	}
	out.ComputeFeedbackRatio()
	return out, nil
}

func buildSummaryQuery(sessionID string) (string, []any, error) {
	const asst = "role = 'assistant'"
	return psql.Select(
		"COUNT(*) AS total_messages",
		"COUNT(*) FILTER (WHERE role = 'user') AS user_messages",
		"COUNT(*) FILTER (WHERE "+asst+") AS assistant_messages",
		"AVG(latency_ms) FILTER (WHERE "+asst+") AS avg_latency_ms",
		"COALESCE(SUM(tokens_in) FILTER (WHERE "+asst+"), 0) AS tokens_in",
		"COALESCE(SUM(tokens_out) FILTER (WHERE "+asst+"), 0) AS tokens_out",
		"COALESCE(SUM(tokens_used) FILTER (WHERE "+asst+"), 0) AS tokens_used",
		"COUNT(*) FILTER (WHERE "+asst+" AND user_feedback = 1) AS positive_feedback",
		"COUNT(*) FILTER (WHERE "+asst+" AND user_feedback = -1) AS negative_feedback",
		"AVG(retrieval_score) FILTER (WHERE "+asst+") AS avg_retrieval_score",
	).
		From(entity.Message{}.TableName()).
		Where(sq.Eq{"chat_session_id": sessionID}).
		ToSql()
}

func buildAnswerTypeQuery(sessionID string) (string, []any, error) {
	return psql.Select("answer_type", "COUNT(*) AS total").
		From(entity.Message{}.TableName()).
		Where(sq.Eq{"chat_session_id": sessionID, "role": string(entity.RoleAssistant)}).
		Where(sq.NotEq{"answer_type": nil}).
		GroupBy("answer_type").
		OrderBy("answer_type").
		ToSql()
}
