// Package config loads domcorderd's runtime configuration.
//
// Settings come from environment variables prefixed with DOMCORDER_,
// optionally seeded from a domcorder.json file whose keys the
// environment always overrides.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "listenAddr": ":8080",
//	    "metricsAddr": ":9090"
//	  },
//	  "storage": {
//	    "recordingsDir": "./data/recordings",
//	    "metadataDBPath": "./data/metadata.db",
//	    "maxRecordingBytes": 1073741824
//	  },
//	  "assets": {
//	    "backend": "local",
//	    "localDir": "./data/assets",
//	    "localBaseURL": "/assets"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load("domcorder.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on:", cfg.Server.ListenAddr)
package config
