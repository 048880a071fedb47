// Package gateway provides an embeddable HTTP control surface for a single
// Vultr instance provisioned with Terraform.
//
// # Overview
//
// The gateway exposes five control endpoints. /status, /start and /shutdown
// resolve the instance id with `terraform output -raw server_id` on every
// request and forward to the Vultr v2 API. /apply and /destroy run
// `terraform apply|destroy -auto-approve` against the deployment directory.
// /start and /shutdown require "Authorization: Bearer <token>".
//
// # Basic Usage
//
//	cfg := &gateway.Config{
//		Server: gateway.ServerConfig{
//			Port:         8080,
//			ReadTimeout:  30 * time.Second,
//			WriteTimeout: 16 * time.Minute,
//		},
//		Auth: gateway.AuthConfig{Token: os.Getenv("VULTR_API_KEY")},
//		Vultr: gateway.VultrConfig{
//			APIKey:  os.Getenv("VULTR_API_KEY"),
//			BaseURL: "https://api.vultr.com/v2",
//			Timeout: 30 * time.Second,
//		},
//		Terraform: gateway.TerraformConfig{
//			Binary:           "terraform",
//			Dir:              "../vultr_deployment",
//			OutputName:       "server_id",
//			OutputTimeout:    30 * time.Second,
//			LifecycleTimeout: 15 * time.Minute,
//		},
//		Logging: gateway.LoggingConfig{Level: "info", Format: "json"},
//	}
//
//	gw, err := gateway.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := gw.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Using with Existing HTTP Server
//
//	http.Handle("/vm/", http.StripPrefix("/vm", gw.Handler()))
//
// # Environment-based Configuration
//
// NewFromEnv reads an optional YAML file and then the environment
// (VULTR_API_KEY is required):
//
//	gw, err := gateway.NewFromEnv("configs/gateway.yaml")
package gateway
