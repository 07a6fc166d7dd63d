package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Usage(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr error
		output  string
	}{
		{name: "no command", wantErr: errUsage, output: "Usage: yaha <command>"},
		{name: "help", args: []string{"help"}, output: "Commands:"},
		{name: "unknown command", args: []string{"deploy"}, wantErr: errUsage, output: `unknown command "deploy"`},
		{name: "command help", args: []string{"compile", "--help"}, output: "--compile-only"},
		{name: "bad flag", args: []string{"serve", "--nope"}, wantErr: errUsage, output: "unknown flag: --nope"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			err := run(tc.args, &stderr)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, stderr.String(), tc.output)
		})
	}
}
