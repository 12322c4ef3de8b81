// Package config loads Billy's YAML configuration.
//
// Values come from Default, then the YAML file, then BILLY_* environment
// variables (BILLY_SONGS_DIR, BILLY_MQTT_HOST, BILLY_MQTT_PASSWORD,
// BILLY_INFLUXDB_TOKEN and friends). Secrets belong in the environment.
//
//	device:
//	  id: billy-kitchen
//	songs:
//	  dir: /srv/billy/songs
//	  watch: true
//	playback:
//	  chunk_frames: 1024
//	  queue_depth: 16
//	movement:
//	  mouth_threshold: 800
//	audio:
//	  backend: oto        # or "null" on headless hosts
//	mqtt:
//	  broker: {host: localhost, port: 1883, client_id: billy-core}
//	database:
//	  path: ./data/billy.db
//	influxdb:
//	  enabled: false
//	api:
//	  port: 8080
package config
