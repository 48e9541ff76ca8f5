package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/koensayr/visca-srt/internal/app"
	"github.com/koensayr/visca-srt/internal/camera"
	"github.com/koensayr/visca-srt/pkg/srt"
)

type Config struct {
	BindAddress string         `yaml:"bind_address"`
	SRTPort     int            `yaml:"srt_port"`
	Settings    srt.Options    `yaml:"srt_settings"`
	Cameras     []CameraConfig `yaml:"cameras"`
	NDI         struct {
		TallyUpdateInterval int `yaml:"tally_update_interval"`
	} `yaml:"ndi_settings"`
}

type CameraConfig struct {
	ID                int            `yaml:"id"`
	Name              string         `yaml:"name"`
	IP                string         `yaml:"ip_address"`
	Port              int            `yaml:"port"`
	ReconnectInterval int            `yaml:"reconnect_interval"` // ms
	CommandTimeout    int            `yaml:"command_timeout"`    // ms
	NdiMapping        *MappingConfig `yaml:"ndi_mapping"`
}

type MappingConfig struct {
	SourceName     string `yaml:"source_name"`
	ProgramEnabled *bool  `yaml:"tally_program_enabled"` // default true
	PreviewEnabled *bool  `yaml:"tally_preview_enabled"` // default true
	Commands       struct {
		Program        app.Bytes `yaml:"program"`
		Preview        app.Bytes `yaml:"preview"`
		ProgramPreview app.Bytes `yaml:"program_preview"`
		Off            app.Bytes `yaml:"off"`
	} `yaml:"commands"`
}

func (c *Config) validate() error {
	if c.BindAddress == "" {
		return errors.New("config: bind_address is required")
	}
	if c.SRTPort <= 0 || c.SRTPort > 0xFFFF {
		return errors.New("config: srt_port is required")
	}

	seen := map[int]bool{}
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.ID < 0 || cam.ID > 0xFF {
			return fmt.Errorf("config: camera %q: id %d out of range", cam.Name, cam.ID)
		}
		if seen[cam.ID] {
			return fmt.Errorf("config: duplicate camera id %d", cam.ID)
		}
		seen[cam.ID] = true
		if cam.IP == "" || cam.Port <= 0 {
			return fmt.Errorf("config: camera %q: ip_address and port are required", cam.Name)
		}
	}
	return nil
}

func (c *CameraConfig) endpoint() camera.Config {
	cfg := camera.Config{
		ID:                byte(c.ID),
		Name:              c.Name,
		Addr:              fmt.Sprintf("%s:%d", c.IP, c.Port),
		ReconnectInterval: time.Duration(c.ReconnectInterval) * time.Millisecond,
		CommandTimeout:    time.Duration(c.CommandTimeout) * time.Millisecond,
	}

	if m := c.NdiMapping; m != nil {
		cfg.Mapping = camera.TallyMapping{
			Source:         m.SourceName,
			ProgramEnabled: m.ProgramEnabled == nil || *m.ProgramEnabled,
			PreviewEnabled: m.PreviewEnabled == nil || *m.PreviewEnabled,
			Program:        m.Commands.Program,
			Preview:        m.Commands.Preview,
			ProgramPreview: m.Commands.ProgramPreview,
			Off:            m.Commands.Off,
		}
	}
	return cfg
}
