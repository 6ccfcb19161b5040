// Package config provides configuration loading for splitroute applications.
//
// The configuration is stored in splitroute.json at the project root and
// layered with environment files and variables:
//
//  1. defaults (New)
//  2. splitroute.json
//  3. .env.web<env> files next to the config (loaded with godotenv)
//  4. process environment: APP_ENV, PORT, WEB_HOST, LOG_LEVEL, ASSETS_SOURCE,
//     ASSETS_BUCKET, ASSETS_REGION, ASSETS_ENDPOINT
//
// # Configuration File Structure
//
//	{
//	  "env": "development",
//	  "web": {
//	    "port": 60987,
//	    "host": "localhost:60987"
//	  },
//	  "ssr": true,
//	  "site": {
//	    "name": "SITE NAME",
//	    "tagline": "The best site for doing X"
//	  },
//	  "progress": { "seconds": 0.25 },
//	  "assets": {
//	    "source": "dir",
//	    "dir": "pages",
//	    "routes": "routes.yaml"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
