package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i2y/mcphub/internal/domain"
)

func TestTitleFromName(t *testing.T) {
	cases := map[string]string{
		"get_report_open_by_priority": "Get Report Open By Priority",
		"mock_api_getUserById":        "Mock Api Getuserbyid",
		"file_fetcher":                "File Fetcher",
		"api2_list":                   "Api2 List",
		"":                            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, domain.TitleFromName(in), in)
	}
}

func TestToolCall_Cleaned(t *testing.T) {
	call := domain.ToolCall{
		Name: "x",
		Arguments: map[string]interface{}{
			"method":   "tools/call",
			"id":       7,
			"result":   nil,
			"priority": "1 - Critical",
		},
	}

	cleaned := call.Cleaned()

	assert.Equal(t, map[string]interface{}{"priority": "1 - Critical"}, cleaned.Arguments)
	assert.Len(t, call.Arguments, 4, "original arguments must be left untouched")
}

func TestToolDescriptor_Kind(t *testing.T) {
	assert.Equal(t, domain.ToolKind(""), domain.ToolDescriptor{}.Kind())
	assert.Equal(t, domain.ToolKindNative, domain.ToolDescriptor{Route: domain.NativeRoute{Tool: "a"}}.Kind())
	assert.Equal(t, domain.ToolKindStaticProxy, domain.ToolDescriptor{Route: domain.StaticRoute{}}.Kind())
	assert.Equal(t, domain.ToolKindDynamicProxy, domain.ToolDescriptor{Route: domain.DynamicRoute{}}.Kind())
}
