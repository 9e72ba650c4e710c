package extract

import "testing"

func TestCode(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantCode string
		wantName string
		wantOK   bool
	}{
		{
			name:     "python block",
			response: "Here you go:\n```python\nprint('hi')\n```\nEnjoy.",
			wantCode: "print('hi')",
			wantOK:   true,
		},
		{
			name:     "name marker inside block",
			response: "```python\n『数据分析』.py\n# 依赖包：pandas\nimport pandas\n```",
			wantCode: "# 依赖包：pandas\nimport pandas",
			wantName: "数据分析",
			wantOK:   true,
		},
		{
			name:     "name marker in prose",
			response: "文件名：『天气查询』.py\n\n```python\nimport requests\n```",
			wantCode: "import requests",
			wantName: "天气查询",
			wantOK:   true,
		},
		{
			name:     "filename comment",
			response: "```python\n# filename: report_builder.py\nx = 1\n```",
			wantCode: "# filename: report_builder.py\nx = 1",
			wantName: "report_builder",
			wantOK:   true,
		},
		{
			name:     "untagged block",
			response: "```\nx = 1\n```",
			wantCode: "x = 1",
			wantOK:   true,
		},
		{
			name:     "python wins over earlier untagged",
			response: "```\npip install x\n```\n```py\ny = 2\n```",
			wantCode: "y = 2",
			wantOK:   true,
		},
		{
			name:     "other languages ignored",
			response: "```bash\nls\n```\ntext\n```python\nz = 3\n```",
			wantCode: "z = 3",
			wantOK:   true,
		},
		{
			name:     "first python block only",
			response: "```python\na = 1\n```\n```python\nb = 2\n```",
			wantCode: "a = 1",
			wantOK:   true,
		},
		{
			name:     "unterminated block",
			response: "```python\nprint(1)\n",
			wantCode: "print(1)",
			wantOK:   true,
		},
		{
			name:     "crlf",
			response: "```python\r\nprint(1)\r\n```\r\n",
			wantCode: "print(1)",
			wantOK:   true,
		},
		{
			name:     "no block",
			response: "Python is a language.",
		},
		{
			name:     "only bash",
			response: "```bash\nls\n```",
		},
		{
			name:     "empty block",
			response: "```python\n\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, ok := Code(tt.response)
			if ok != tt.wantOK {
				t.Fatalf("Code() ok = %v, want %v", ok, tt.wantOK)
			}
			if art.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", art.Code, tt.wantCode)
			}
			if art.SuggestedName != tt.wantName {
				t.Errorf("SuggestedName = %q, want %q", art.SuggestedName, tt.wantName)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report", "report"},
		{"report.py", "report"},
		{"数据分析", "数据分析"},
		{"my report", "my_report"},
		{"../../etc/passwd", "passwd"},
		{`C:\tmp\evil.py`, "evil"},
		{"a*b?c", "abc"},
		{"données-2024", "données-2024"},
		{"  _x_  ", "x"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "名"
	}
	got := SanitizeFilename(long)
	if n := len([]rune(got)); n != maxNameRunes {
		t.Errorf("got %d runes, want %d", n, maxNameRunes)
	}
}

func TestHasDeclaredDeps(t *testing.T) {
	if !HasDeclaredDeps("# 依赖包：requests\nimport requests") {
		t.Error("expected declaration to be found")
	}
	if !HasDeclaredDeps("# deps: none\nprint(1)") {
		t.Error("explicit none counts as a declaration")
	}
	if HasDeclaredDeps("import requests") {
		t.Error("plain imports are not a declaration")
	}
}
