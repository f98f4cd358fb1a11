package models

// Category is the closed set of board categories a post belongs to.
// The values are the display strings used at post-creation time.
type Category string

// Category constants
const (
	CategorySalary      Category = "年収・手取り"
	CategoryBlackOrNot  Category = "ホワイト・ブラック判定"
	CategoryBonus       Category = "ボーナス報告"
	CategoryJobChange   Category = "転職のホンネ"
	CategoryBoss        Category = "人間関係・上司"
	CategoryPolitics    Category = "社内政治・派閥"
	CategoryOvertime    Category = "サービス残業・待遇"
	CategoryBenefits    Category = "福利厚生・環境"
	CategoryMental      Category = "メンタル・悩み"
	CategoryMurmur      Category = "つぶやき"
)

// Categories returns every selectable category in display order.
func Categories() []Category {
	return []Category{
		CategorySalary,
		CategoryBlackOrNot,
		CategoryBonus,
		CategoryJobChange,
		CategoryBoss,
		CategoryPolitics,
		CategoryOvertime,
		CategoryBenefits,
		CategoryMental,
		CategoryMurmur,
	}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}
