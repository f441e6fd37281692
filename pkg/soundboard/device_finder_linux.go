package soundboard

import (
	"fmt"
	"net"

	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"
)

// paDeviceFinder lists PulseAudio (or PipeWire-pulse) sinks.
type paDeviceFinder struct {
	logger *zap.SugaredLogger
	client *proto.Client
	conn   net.Conn
}

// NewDeviceFinder connects to the PulseAudio server.
func NewDeviceFinder(logger *zap.SugaredLogger) (DeviceFinder, error) {
	logger = logger.Named("device_finder")

	client, conn, err := proto.Connect("")
	if err != nil {
		logger.Warnw("Failed to establish PulseAudio connection", "error", err)
		return nil, fmt.Errorf("establish PulseAudio connection: %w", err)
	}

	request := proto.SetClientName{
		Props: proto.PropList{
			"application.name": proto.PropListString("soundboard"),
		},
	}
	if err := client.Request(&request, &proto.SetClientNameReply{}); err != nil {
		_ = conn.Close()
		logger.Warnw("Failed to set client name", "error", err)
		return nil, fmt.Errorf("set client name: %w", err)
	}

	df := &paDeviceFinder{
		logger: logger,
		client: client,
		conn:   conn,
	}

	df.logger.Debug("Initialized PA device finder instance")
	return df, nil
}

// OutputDevices fetches every sink and marks the server default.
func (df *paDeviceFinder) OutputDevices() ([]OutputDevice, error) {
	serverInfo := proto.GetServerInfoReply{}
	if err := df.client.Request(&proto.GetServerInfo{}, &serverInfo); err != nil {
		df.logger.Warnw("Failed to get server info", "error", err)
		return nil, fmt.Errorf("get server info: %w", err)
	}

	reply := proto.GetSinkInfoListReply{}
	if err := df.client.Request(&proto.GetSinkInfoList{}, &reply); err != nil {
		df.logger.Warnw("Failed to get sink list", "error", err)
		return nil, fmt.Errorf("get sink list: %w", err)
	}

	devices := make([]OutputDevice, 0, len(reply))
	for _, info := range reply {
		devices = append(devices, OutputDevice{
			Name:        info.SinkName,
			Description: info.Device,
			Default:     info.SinkName == serverInfo.DefaultSinkName,
		})
	}

	df.logger.Debugw("Got output devices", "count", len(devices))
	return devices, nil
}

// Release closes the PulseAudio connection.
func (df *paDeviceFinder) Release() error {
	defer df.logger.Debug("Released PA device finder instance")

	if err := df.conn.Close(); err != nil {
		df.logger.Warnw("Failed to close PulseAudio connection", "error", err)
		return fmt.Errorf("close PulseAudio connection: %w", err)
	}
	return nil
}
