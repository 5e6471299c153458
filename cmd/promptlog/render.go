package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/lgc202/promptlog/template"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		templatePath string
		text         string
		params       string
		showVars     bool
	)
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "使用参数渲染提示词模板",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := loadTemplate(templatePath, text)
			if err != nil {
				return err
			}
			p, err := loadParams(params)
			if err != nil {
				return err
			}
			if showVars {
				a.printf("%s\n\n", variablesTable(tmpl, p))
			}

			out, err := tmpl.Format(p)
			if err != nil {
				return err
			}
			if s, ok := out.(string); ok {
				a.printf("%s\n", s)
				return nil
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			a.printf("%s\n", b)
			return nil
		},
	}
	renderCmd.Flags().StringVarP(&templatePath, "template", "t", "", "模板文件；JSON 文件按结构模板编译，其他内容按文本模板编译")
	renderCmd.Flags().StringVar(&text, "text", "", "内联文本模板")
	renderCmd.Flags().StringVarP(&params, "params", "p", "", "参数：内联 JSON 对象或 JSON 文件路径")
	renderCmd.Flags().BoolVar(&showVars, "vars", true, "先打印变量表")
	renderCmd.MarkFlagsMutuallyExclusive("template", "text")
	renderCmd.MarkFlagsOneRequired("template", "text")
	return renderCmd
}

func loadTemplate(path, text string) (*template.Template, error) {
	if path == "" {
		return template.Text(text), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	if json.Valid(data) {
		return template.ParseJSON(data)
	}
	return template.Text(string(data)), nil
}

func loadParams(arg string) (map[string]any, error) {
	if arg == "" {
		return map[string]any{}, nil
	}
	data := []byte(arg)
	if !strings.HasPrefix(strings.TrimSpace(arg), "{") {
		b, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read params: %w", err)
		}
		data = b
	}
	var p map[string]any
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	if p == nil {
		return nil, errors.New("params must be a JSON object")
	}
	return p, nil
}

func variablesTable(tmpl *template.Template, params map[string]any) string {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("VARIABLE", "BOUND", "VALUE")
	for _, name := range tmpl.Variables() {
		v, ok := params[name]
		value := "-"
		if ok {
			b, err := json.Marshal(v)
			if err != nil {
				value = fmt.Sprint(v)
			} else {
				value = string(b)
			}
		}
		table.AddRow(name, ok, value)
	}
	return table.String()
}
