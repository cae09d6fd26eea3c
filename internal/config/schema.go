package config

// daemonSchema validates the on-disk daemon configuration file (spec §6,
// "Configuration"), following this module's own co-located raw-string
// jsonschema convention.
var daemonSchema = `
{
  "type": "object",
  "properties": {
    "socket-path": {
      "description": "Unix domain socket the control protocol listens on.",
      "type": "string"
    },
    "target": {
      "description": "Daemon name; the socket defaults to /var/lib/xcp/<target>.",
      "type": "string"
    },
    "user": {
      "description": "Drop root permissions to this user once the socket is bound.",
      "type": "string"
    },
    "group": {
      "description": "Drop root permissions to this group once the socket is bound.",
      "type": "string"
    },
    "loglevel": {
      "description": "Minimum log severity: debug, info, warn, err, fatal or crit.",
      "type": "string",
      "enum": ["debug", "info", "warn", "err", "fatal", "crit"]
    },
    "log-datetime": {
      "description": "Prefix log lines with a timestamp (disable when running under systemd).",
      "type": "boolean"
    },
    "ring-sizes": {
      "description": "Overrides for the four round-robin ring entry counts.",
      "type": "object",
      "properties": {
        "five-second": {"type": "integer", "minimum": 1},
        "one-minute":  {"type": "integer", "minimum": 1},
        "one-hour":    {"type": "integer", "minimum": 1},
        "one-day":     {"type": "integer", "minimum": 1}
      }
    },
    "legacy-patterns": {
      "description": "Predefined pattern-strategy rules for legacy DataSource name mapping.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source-name": {"type": "string"},
          "pattern":     {"type": "string"},
          "min":         {"type": "number"},
          "max":         {"type": "number"},
          "default":     {"type": "number"}
        },
        "required": ["source-name", "pattern"]
      }
    }
  }
}
`
