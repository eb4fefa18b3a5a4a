package mail

import (
	"testing"
	"time"
)

func TestNormalizeSpace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024年度 科研经费 汇总", "2024年度科研经费汇总"},
		{"\tRe: 汇总\r\n", "Re:汇总"},
		{"nospace", "nospace"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSpace(tt.in); got != tt.want {
			t.Errorf("NormalizeSpace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsTaskReply(t *testing.T) {
	const marker = "汇总"

	tests := []struct {
		name     string
		subject  string
		taskName string
		want     bool
	}{
		{
			name:     "subject contains task name",
			subject:  "Re: 【请回复】2024年度科研经费汇总 - 数据汇总工作",
			taskName: "2024年度科研经费汇总",
			want:     true,
		},
		{
			name:     "whitespace inserted by relay",
			subject:  "Re: 2024年度 科研经费 汇总",
			taskName: "2024年度科研经费汇总",
			want:     true,
		},
		{
			name:     "long name truncated but prefix and marker survive",
			subject:  "回复：2024年度科研... 数据汇总",
			taskName: "2024年度科研经费使用情况统计",
			want:     true,
		},
		{
			name:     "prefix without marker is not enough",
			subject:  "关于2024年度的一个问题",
			taskName: "2024年度科研经费使用情况统计",
			want:     false,
		},
		{
			name:     "short name never matches by prefix",
			subject:  "经费汇总",
			taskName: "经费审计",
			want:     false,
		},
		{
			name:     "unrelated subject",
			subject:  "下周会议安排",
			taskName: "2024年度科研经费汇总",
			want:     false,
		},
		{
			name:     "empty task name matches nothing",
			subject:  "任意主题",
			taskName: "",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTaskReply(tt.subject, tt.taskName, marker); got != tt.want {
				t.Errorf("IsTaskReply(%q, %q) = %v, want %v", tt.subject, tt.taskName, got, tt.want)
			}
		})
	}
}

func TestIsTaskReplyWithoutMarkerDisablesPrefixTier(t *testing.T) {
	subject := "回复：2024年度科研相关事宜"
	taskName := "2024年度科研经费使用情况统计"
	if IsTaskReply(subject, taskName, "") {
		t.Error("prefix tier matched without a marker keyword")
	}
}

func TestSearchStrategies(t *testing.T) {
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if len(SearchStrategies) != 2 {
		t.Fatalf("got %d strategies, want 2", len(SearchStrategies))
	}

	first := SearchStrategies[0]("汇总", since)
	if first.SubjectContains != "汇总" {
		t.Errorf("first strategy SubjectContains = %q, want marker", first.SubjectContains)
	}
	if !first.Since.Equal(since) {
		t.Errorf("first strategy Since = %v, want %v", first.Since, since)
	}

	last := SearchStrategies[len(SearchStrategies)-1]("汇总", since)
	if last.SubjectContains != "" {
		t.Errorf("final strategy SubjectContains = %q, want unfiltered listing", last.SubjectContains)
	}
	if !last.Since.Equal(since) {
		t.Errorf("final strategy Since = %v, want %v", last.Since, since)
	}
}
