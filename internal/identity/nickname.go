package identity

import (
	"math/rand"
)

// DefaultNickname is used when no preference is stored.
const DefaultNickname = "匿名の訪問者"

// Adjective and noun pools for generated guest nicknames.
var (
	nicknameAdjectives = []string{
		"優しい", "元気な", "静かな", "明るい", "真面目な",
		"謙虚な", "素直な", "穏やかな", "勇敢な", "賢い",
		"面白い", "誠実な", "親切な", "冷静な", "素朴な",
		"陽気な", "控えめな", "率直な", "温厚な", "のんびりした",
	}
	nicknameNouns = []string{
		"会社員", "サラリーマン", "ビジネスマン", "社会人", "労働者",
		"新入社員", "中堅社員", "ベテラン", "リーマン", "営業マン",
		"事務員", "エンジニア", "管理職", "平社員", "転職者",
		"求職者", "同僚", "先輩", "後輩", "訪問者",
		"投稿者", "ユーザー", "旅人", "名無し", "匿名さん",
	}
)

// GenerateNickname derives an anonymous adjective+noun nickname from the
// seed. Pure: the same seed always yields the same name.
func GenerateNickname(seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	adjective := nicknameAdjectives[rng.Intn(len(nicknameAdjectives))]
	noun := nicknameNouns[rng.Intn(len(nicknameNouns))]
	return adjective + noun
}
