package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, language.English, Match(""))
	assert.Equal(t, language.English, Match("en-US"))
	assert.Equal(t, language.SimplifiedChinese, Match("zh-CN"))
	assert.Equal(t, language.SimplifiedChinese, Match("zh-Hans,en;q=0.5"))
	assert.Equal(t, language.English, Match("fr"))
	assert.Equal(t, language.English, Match("!!"))
}

func TestTranslate(t *testing.T) {
	en := New("en")
	assert.Equal(t, "The teacher accepted your request", en.T("toast.the_teacher_agreed"))
	assert.Equal(t, "toast.not_a_key", en.T("toast.not_a_key"))

	zh := New("zh-CN")
	assert.Equal(t, "老师同意了你的申请", zh.T("toast.the_teacher_agreed"))
}

func TestCatalogsCoverSameKeys(t *testing.T) {
	en := messages[language.English]
	zh := messages[language.SimplifiedChinese]
	assert.Len(t, zh, len(en))
	for key := range en {
		assert.Contains(t, zh, key)
	}
}
