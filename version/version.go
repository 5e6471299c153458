// Package version 记录构建时通过 -ldflags 注入的版本信息，
// 供 `promptlog version` 输出以及遥测请求的 User-Agent 使用。
//
//	go build -ldflags "-X github.com/lgc202/promptlog/version.gitVersion=v0.3.0 \
//	  -X github.com/lgc202/promptlog/version.gitCommit=$(git rev-parse HEAD)" ./cmd/promptlog
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/gosuri/uitable"
)

var (
	// gitVersion 格式为 vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]
	gitVersion = "v0.0.0-dev"
	// gitCommit 是 $(git rev-parse HEAD) 的输出
	gitCommit = "unknown"
	// gitTreeState 为 clean 或 dirty
	gitTreeState = ""
	// buildDate 是 ISO8601 格式的构建时间
	buildDate = "1970-01-01T00:00:00Z"
)

// Info 描述当前二进制由哪个版本的代码构建
type Info struct {
	GitVersion   string `json:"gitVersion"`
	GitCommit    string `json:"gitCommit"`
	GitTreeState string `json:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate"`
	GoVersion    string `json:"goVersion"`
	Platform     string `json:"platform"`
}

func Get() Info {
	return Info{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String 返回版本号，工作区不干净时带 -dirty 后缀
func (info Info) String() string {
	if info.GitTreeState == "dirty" {
		return info.GitVersion + "-dirty"
	}
	return info.GitVersion
}

// Text 以对齐的表格形式返回版本信息
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("gitVersion:", info.GitVersion)
	table.AddRow("gitCommit:", info.GitCommit)
	if info.GitTreeState != "" {
		table.AddRow("gitTreeState:", info.GitTreeState)
	}
	table.AddRow("buildDate:", info.BuildDate)
	table.AddRow("goVersion:", info.GoVersion)
	table.AddRow("platform:", info.Platform)
	return table.String()
}

// Format 是 `version -o` 支持的输出格式
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatShort Format = "short"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatShort:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or short)", s)
	}
}

// Render 按指定格式输出版本信息
func (info Info) Render(f Format) (string, error) {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal version info: %w", err)
		}
		return string(b), nil
	case FormatShort:
		return info.String(), nil
	default:
		return info.Text(), nil
	}
}

// UserAgent 是遥测请求使用的 User-Agent，形如 promptlog/v0.3.0 (linux/amd64)
func UserAgent() string {
	info := Get()
	return fmt.Sprintf("promptlog/%s (%s)", info.String(), info.Platform)
}
