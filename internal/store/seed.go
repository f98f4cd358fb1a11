package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shokuba/honne/internal/models"
)

// Seed fills the gateway with the demo dataset served in offline mode.
func Seed(ctx context.Context, gw Gateway) error {
	now := time.Now().UTC()

	posts := []models.Post{
		{
			ID:         "seed-post-1",
			Nickname:   "匿名太郎",
			Category:   models.CategorySalary,
			Content:    "3年目、システムエンジニア、年収450万円、手取り月28万円くらいです。同じ経験年数の方、どれくらいもらってますか？",
			LikesCount: 42,
			CreatedAt:  now.Add(-2 * time.Hour),
		},
		{
			ID:         "seed-post-2",
			Nickname:   "サラリーマン",
			Category:   models.CategoryBonus,
			Content:    "夏のボーナス、業績好調で4.5ヶ月分出ました！久々に嬉しい報告です。みなさんの会社はどうでしたか？",
			LikesCount: 67,
			CreatedAt:  now.Add(-5 * time.Hour),
		},
		{
			ID:         "seed-post-3",
			Nickname:   "疲れた社員",
			Category:   models.CategoryBlackOrNot,
			Content:    "残業月80時間、休日出勤あり、パワハラ日常茶飯事...これってブラック企業ですよね？判定お願いします。",
			LikesCount: 89,
			CreatedAt:  now.Add(-8 * time.Hour),
		},
		{
			ID:         "seed-post-4",
			Nickname:   "悩める社員",
			Category:   models.CategoryBoss,
			Content:    "上司との人間関係に本当に悩んでいます。毎日のように小さなことで怒られて、精神的に限界です...",
			LikesCount: 34,
			CreatedAt:  now.Add(-12 * time.Hour),
		},
		{
			ID:         "seed-post-5",
			Nickname:   "転職成功者",
			Category:   models.CategoryJobChange,
			Content:    "30代で未経験の業界に転職しました。給与は下がったけど、人間関係が良くて毎日が楽しいです。",
			LikesCount: 56,
			CreatedAt:  now.Add(-24 * time.Hour),
		},
	}

	comments := []models.Comment{
		{
			ID:        "seed-comment-1",
			PostID:    "seed-post-4",
			UserID:    "seed-user-1",
			Nickname:  "匿名のエンジニア4567",
			Content:   "私も同じような経験があります。まずは上司以外の人に相談してみてはいかがでしょうか。",
			CreatedAt: now.Add(-time.Hour),
		},
		{
			ID:        "seed-comment-2",
			PostID:    "seed-post-4",
			UserID:    "seed-user-2",
			Nickname:  "匿名の人事担当8901",
			Content:   "転職する前に、人事部門に相談することをお勧めします。社内で解決できる可能性もあります。",
			CreatedAt: now.Add(-30 * time.Minute),
		},
		{
			ID:        "seed-comment-3",
			PostID:    "seed-post-3",
			UserID:    "seed-user-3",
			Nickname:  "元ブラック企業社員",
			Content:   "それは完全にブラックです。早めに転職を検討した方が良いと思います。",
			CreatedAt: now.Add(-3 * time.Hour),
		},
	}

	for i := range posts {
		if err := gw.Insert(ctx, Posts, &posts[i]); err != nil {
			return fmt.Errorf("failed to seed post %s: %w", posts[i].ID, err)
		}
	}
	for i := range comments {
		if err := gw.Insert(ctx, Comments, &comments[i]); err != nil {
			return fmt.Errorf("failed to seed comment %s: %w", comments[i].ID, err)
		}
	}
	return nil
}
