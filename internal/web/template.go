package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/irsensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"levelClass": func(s string) string {
		switch s {
		case "ON", "SATURATED":
			return "on"
		case "APPROACHING":
			return "near"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>IR Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.near { color: #c80; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>IR Sensor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Output</th><td id="level" class="{{levelClass .Status.Level}}">{{.Status.Level}}</td></tr>
<tr><th>Fan</th><td id="fan" class="{{if eq .Status.Fan "ON"}}on{{else}}off{{end}}">{{.Status.Fan}}{{if .Status.FanReason}} ({{.Status.FanReason}}){{end}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Status.Mode}}</td></tr>
<tr><th>Thermistor</th><td>{{.Status.Variant}}</td></tr>
<tr><th>Ready</th><td>{{if .Status.Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Restarts</th><td>{{.Status.Restarts}}</td></tr>
</table>

<h2>Readings</h2>
<table>
<tr><th>Tick</th><td id="tick">{{.Status.Sensor.Tick}}</td></tr>
<tr><th>Near</th><td id="near">{{.Status.Sensor.Near}} ({{.Status.Sensor.Means.Near}})</td></tr>
<tr><th>Far</th><td id="far">{{.Status.Sensor.Far}} ({{.Status.Sensor.Means.Far}})</td></tr>
<tr><th>Ambient</th><td id="ambient">{{.Status.Sensor.Off}} ({{.Status.Sensor.Means.Off}})</td></tr>
<tr><th>Thermistor</th><td id="thermistor">{{.Status.Sensor.FanDiff}} ({{.Status.Sensor.Means.FanDiff}})</td></tr>
<tr><th>Fan hold</th><td id="hold">{{.Status.Sensor.Hold}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}">{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Status.MQTT.Broker}}</td></tr>
{{with .Status.Network}}<tr><th>Network</th><td>{{.Status}} ({{.Type}}{{if .SSID}}, {{.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>OFF</th><td>{{.Status.Counts.Off}}</td></tr>
<tr><th>APPROACHING</th><td>{{.Status.Counts.Approaching}}</td></tr>
<tr><th>ON</th><td>{{.Status.Counts.On}}</td></tr>
<tr><th>SATURATED</th><td>{{.Status.Counts.Saturated}}</td></tr>
<tr><th>FAN ON</th><td>{{.Status.Counts.FanOn}}</td></tr>
<tr><th>FAN OFF</th><td>{{.Status.Counts.FanOff}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Status.StartTime}}</td></tr>
<tr><th>Backend</th><td>{{.Status.Config.Backend}}</td></tr>
<tr><th>Interrupt</th><td>{{.Status.Config.InterruptHz}}Hz</td></tr>
<tr><th>Loop</th><td>{{.Status.Config.LoopMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Status.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Status.Config.HeartbeatMs 0}}disabled{{else}}{{.Status.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Status.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, text, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = text;
    if (cls !== undefined) el.className = cls;
  }
  function levelClass(l) {
    return l === "ON" || l === "SATURATED" ? "on" : l === "APPROACHING" ? "near" : l === "OFF" ? "off" : "unknown";
  }
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data);
        if (msg.type === "status") {
          var s = msg.data.status;
          set("level", s.level, levelClass(s.level));
          set("fan", s.fan + (s.fan_reason ? " (" + s.fan_reason + ")" : ""), s.fan === "ON" ? "on" : "off");
          set("mode", s.mode);
          set("tick", s.sensor.tick);
          set("near", s.sensor.near + " (" + s.sensor.means.near + ")");
          set("far", s.sensor.far + " (" + s.sensor.means.far + ")");
          set("ambient", s.sensor.off + " (" + s.sensor.means.off + ")");
          set("thermistor", s.sensor.fan_diff + " (" + s.sensor.means.fan_diff + ")");
          set("hold", s.sensor.hold);
        } else if (msg.type === "event") {
          set("level", msg.data.level, levelClass(msg.data.level));
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.StatusJSON
		Uptime time.Duration
	}{
		StatusJSON: status.Build(snap),
		Uptime:     snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
