// Package config provides configuration parsing for wasmpack projects.
//
// The configuration is stored in wasmpack.json (or wasmpack.yaml) at the
// project root. Every field is optional: a project without a config file
// gets the defaults below, which pack build/main.js, build/main.wasm,
// build/main.data and the static directory into pack/.
//
// # Configuration File Structure
//
//	{
//	  "mode": "development",
//	  "optimization": { "minimize": false },
//	  "paths": { "build": "build", "pack": "pack", "static": "static" },
//	  "entry": { "index": "build/main.js" },
//	  "copy": [
//	    { "from": "static" },
//	    { "from": "build/main.wasm" },
//	    { "from": "build/main.data" }
//	  ],
//	  "dev": {
//	    "port": 8080,
//	    "host": "localhost",
//	    "watch": ["static", "build"],
//	    "hotReload": true,
//	    "clientLogging": "warn",
//	    "debounce": "100ms"
//	  },
//	  "publish": { "bucket": "my-site", "prefix": "game/" }
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Pack:", cfg.PackPath())
package config
