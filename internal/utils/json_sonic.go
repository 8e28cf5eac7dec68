//go:build sonic

package utils

import (
	"github.com/bytedance/sonic"
)

var (
	JSONMarshal       = sonic.Marshal
	JSONMarshalIndent = sonic.ConfigDefault.MarshalIndent
	JSONUnmarshal     = sonic.Unmarshal
)
