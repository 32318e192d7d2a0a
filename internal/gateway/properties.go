package gateway

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/shirou/gopsutil/v3/host"
)

const clientName = "gatectl"

// DefaultProperties describes this client in identify. The OS comes from
// the host platform when it can be read quickly.
func DefaultProperties(ctx context.Context) protocol.Properties {
	return protocol.Properties{
		OS:      hostOS(ctx),
		Browser: clientName,
		Device:  clientName,
	}
}

func hostOS(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil || strings.TrimSpace(info.OS) == "" {
		return runtime.GOOS
	}
	return info.OS
}
