package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		topic   Topic
		pattern Topic
		want    bool
	}{
		{"dataset.added", "dataset.added", true},
		{"dataset.added", "dataset.removed", false},
		{"dataset.added", "dataset.*", true},
		{"dataset.selection.changed", "dataset.*", false},
		{"dataset.selection.changed", "dataset.**", true},
		{"dataset", "dataset.**", true},
		{"hierarchy.item.removed", "*.item.*", true},
		{"action.value.changed", "**", true},
		{"action.value.changed", "**.changed", true},
		{"action.value.changed", "plugin.**", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+"~"+string(tt.pattern), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestTopicHelpers(t *testing.T) {
	tp := Join("hierarchy", "item")
	assert.Equal(t, Topic("hierarchy.item"), tp)
	assert.Equal(t, Topic("hierarchy.item.added"), tp.Child("added"))
	assert.Equal(t, "hierarchy", tp.Root())
	assert.Equal(t, []string{"hierarchy", "item"}, tp.Segments())
	assert.True(t, tp.IsValid())
	assert.False(t, Topic("a..b").IsValid())
	assert.False(t, Topic("").IsValid())
	assert.True(t, Topic("a.*").IsWildcard())
}
