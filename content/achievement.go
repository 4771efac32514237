package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AchievementKind discriminates the two shapes of an Achievement.
type AchievementKind string

const (
	Plain    AchievementKind = "plain"
	Detailed AchievementKind = "detailed"
)

// Achievement is either a plain line of text or a titled entry with a
// description. In JSON a plain achievement is a bare string and a detailed
// one is a {"title", "description"} object.
type Achievement struct {
	Kind        AchievementKind `json:"kind"`
	Text        string          `json:"text"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
}

// PlainAchievement returns a text-only achievement.
func PlainAchievement(text string) Achievement {
	return Achievement{Kind: Plain, Text: text}
}

// DetailedAchievement returns a titled achievement.
func DetailedAchievement(title, description string) Achievement {
	return Achievement{Kind: Detailed, Title: title, Description: description}
}

// Label is the headline of the achievement.
func (a Achievement) Label() string {
	if a.Kind == Detailed {
		return a.Title
	}
	return a.Text
}

// Empty reports whether the entry is a blank placeholder row.
func (a Achievement) Empty() bool {
	if a.Kind == Detailed {
		return strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.Description) == ""
	}
	return strings.TrimSpace(a.Text) == ""
}

func (a Achievement) MarshalJSON() ([]byte, error) {
	if a.Kind == Detailed {
		return json.Marshal(struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}{a.Title, a.Description})
	}
	return json.Marshal(a.Text)
}

func (a *Achievement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = Achievement{Kind: Plain}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = PlainAchievement(s)
		return nil
	case len(data) > 0 && data[0] == '{':
		var obj struct {
			Kind        AchievementKind `json:"kind"`
			Text        string          `json:"text"`
			Title       string          `json:"title"`
			Description string          `json:"description"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Kind == Plain {
			*a = PlainAchievement(obj.Text)
			return nil
		}
		*a = DetailedAchievement(obj.Title, obj.Description)
		return nil
	}
	return fmt.Errorf("content: achievement must be a string or an object, got %s", data)
}
