package client

import (
	"errors"
	"fmt"

	"github.com/koensayr/visca-srt/pkg/srt"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"srt_server"`
	Settings    srt.Options      `yaml:"srt_settings"`
	Endpoints   []EndpointConfig `yaml:"endpoints"`
	TallyListen string           `yaml:"tally_listen"` // optional UDP ingest
}

type EndpointConfig struct {
	Name              string `yaml:"name"`
	IP                string `yaml:"ip_address"`
	Port              int    `yaml:"port"`
	CameraID          int    `yaml:"camera_id"`
	ReconnectInterval int    `yaml:"reconnect_interval"` // ms
	CommandTimeout    int    `yaml:"command_timeout"`    // ms
}

func (c *Config) validate() error {
	if c.Server.Host == "" {
		return errors.New("config: srt_server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 0xFFFF {
		return errors.New("config: srt_server.port is required")
	}

	seen := map[int]bool{}
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.CameraID < 0 || ep.CameraID > 0xFF {
			return fmt.Errorf("config: endpoint %q: camera_id %d out of range", ep.Name, ep.CameraID)
		}
		if seen[ep.CameraID] {
			return fmt.Errorf("config: duplicate camera_id %d", ep.CameraID)
		}
		seen[ep.CameraID] = true
		if ep.IP == "" || ep.Port <= 0 {
			return fmt.Errorf("config: endpoint %q: ip_address and port are required", ep.Name)
		}
	}
	return nil
}
