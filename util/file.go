package util

import (
	"context"
	"os"
	"strings"

	nhttp "github.com/chaos-io/bgkey/util/http"
)

var client nhttp.IClient = nhttp.NewHTTPClient()

// IsRemote path 是否为 http(s) URL
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// ReadSource 读取本地文件或下载远程文件的原始字节
func ReadSource(ctx context.Context, path string) ([]byte, error) {
	if !IsRemote(path) {
		return os.ReadFile(path)
	}

	var data []byte
	err := client.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: path,
		Method:     "GET",
		Response:   &data,
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
