package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/relabs-tech/tilt_matrix/internal/config"
	"github.com/relabs-tech/tilt_matrix/internal/mpu6050"
	"github.com/relabs-tech/tilt_matrix/internal/telemetry"
)

// FormatAttitude renders an attitude payload as one console line.
func FormatAttitude(payload []byte) (string, error) {
	var a mpu6050.Attitude
	if err := json.Unmarshal(payload, &a); err != nil {
		return "", err
	}
	return fmt.Sprintf("[TILT] %s  ROLL=%6.2f PITCH=%6.2f YAW=%6.2f  T=%.1f°C",
		a.Sample, a.Roll, a.Pitch, a.Yaw, a.TemperatureC), nil
}

// FormatFrame renders a frame payload as a header line plus the 8 rows.
func FormatFrame(payload []byte) (string, error) {
	var f telemetry.Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return "", err
	}
	return "[FRAME] " + f.Time.Format("15:04:05.000") + "\n  " + strings.Join(f.Grid(), "\n  "), nil
}

// RunConsole subscribes to the telemetry topics of the global
// configuration and prints every message to w until ctx is done.
func RunConsole(ctx context.Context, w io.Writer) error {
	cfg := config.Get()
	broker := cfg.Telemetry.MQTTBroker
	if broker == "" {
		broker = "tcp://localhost:1883"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.Telemetry.MQTTClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("console: MQTT connect %s: %w", broker, token.Error())
	}
	defer client.Disconnect(250)
	glog.Infof("console: connected to MQTT broker at %s", broker)

	subs := map[string]func([]byte) (string, error){
		cfg.Telemetry.TopicAttitude: FormatAttitude,
		cfg.Telemetry.TopicFrame:    FormatFrame,
	}
	for topic, format := range subs {
		format := format
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				glog.Warningf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Fprintln(w, line)
		})
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("console: subscribe %s: %w", topic, token.Error())
		}
		glog.Infof("console: subscribed to %s", topic)
	}

	<-ctx.Done()
	glog.Info("console: shutting down")
	return nil
}
