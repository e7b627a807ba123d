package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type tenant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Subdomain     string    `json:"subdomain"`
	CustomDomain  string    `json:"custom_domain"`
	Status        string    `json:"status"`
	Plan          string    `json:"plan"`
	EncryptionKey string    `json:"encryption_key"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateCmd struct {
	Server       string `help:"Server URL" default:"http://localhost:8080" env:"LEGALCRM_SERVER"`
	Name         string `help:"Tenant display name" required:""`
	Subdomain    string `help:"Tenant subdomain ([a-z0-9-]+)" required:""`
	CustomDomain string `help:"Optional custom domain" default:""`
	Plan         string `help:"Subscription plan" default:"basic" enum:"basic,professional,enterprise"`
}

func (c *CreateCmd) Run(ctx context.Context, globals *Globals) error {
	req := map[string]any{
		"name":          c.Name,
		"subdomain":     c.Subdomain,
		"custom_domain": c.CustomDomain,
		"plan":          c.Plan,
	}

	var t tenant
	if err := doJSON(ctx, http.MethodPost, c.Server+"/api/admin/tenants", req, &t); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	fmt.Printf("Created tenant %s (%s)\n", t.Name, t.ID)
	fmt.Printf("  subdomain:      %s\n", t.Subdomain)
	if t.CustomDomain != "" {
		fmt.Printf("  custom domain:  %s\n", t.CustomDomain)
	}
	fmt.Printf("  plan:           %s\n", t.Plan)
	fmt.Printf("  status:         %s\n", t.Status)
	fmt.Printf("  encryption key: %s\n", t.EncryptionKey)
	fmt.Println("\nStore the encryption key now - it is not shown again.")
	return nil
}

type ListCmd struct {
	Server string `help:"Server URL" default:"http://localhost:8080" env:"LEGALCRM_SERVER"`
	Limit  int    `help:"Page size" default:"50"`
	Offset int    `help:"Page offset" default:"0"`
}

func (l *ListCmd) Run(ctx context.Context, globals *Globals) error {
	var resp struct {
		Tenants []tenant `json:"tenants"`
		Total   int64    `json:"total"`
	}

	url := fmt.Sprintf("%s/api/admin/tenants?limit=%d&offset=%d", l.Server, l.Limit, l.Offset)
	if err := doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if len(resp.Tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	fmt.Printf("%-36s %-20s %-20s %-12s %-12s %-20s\n",
		"Tenant ID", "Name", "Subdomain", "Status", "Plan", "Created At")
	for _, t := range resp.Tenants {
		name := t.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Printf("%-36s %-20s %-20s %-12s %-12s %-20s\n",
			t.ID, name, t.Subdomain, t.Status, t.Plan,
			t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\nTotal tenants: %d\n", resp.Total)
	return nil
}

type GetCmd struct {
	Server string `help:"Server URL" default:"http://localhost:8080" env:"LEGALCRM_SERVER"`
	ID     string `arg:"" help:"Tenant ID"`
}

func (g *GetCmd) Run(ctx context.Context, globals *Globals) error {
	var t tenant
	if err := doJSON(ctx, http.MethodGet, g.Server+"/api/admin/tenants/"+g.ID, nil, &t); err != nil {
		return fmt.Errorf("failed to get tenant: %w", err)
	}

	fmt.Printf("Tenant %s\n", t.ID)
	fmt.Printf("  name:          %s\n", t.Name)
	fmt.Printf("  subdomain:     %s\n", t.Subdomain)
	if t.CustomDomain != "" {
		fmt.Printf("  custom domain: %s\n", t.CustomDomain)
	}
	fmt.Printf("  status:        %s\n", t.Status)
	fmt.Printf("  plan:          %s\n", t.Plan)
	fmt.Printf("  created:       %s\n", t.CreatedAt.Format(time.RFC3339))
	return nil
}

type StatusCmd struct {
	Server string `help:"Server URL" default:"http://localhost:8080" env:"LEGALCRM_SERVER"`
	ID     string `arg:"" help:"Tenant ID"`
	Status string `arg:"" help:"New status" enum:"active,inactive,suspended,trial"`
}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	var t tenant
	url := s.Server + "/api/admin/tenants/" + s.ID + "/status"
	if err := doJSON(ctx, http.MethodPut, url, map[string]string{"status": s.Status}, &t); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	fmt.Printf("Tenant %s is now %s\n", t.ID, t.Status)
	return nil
}

type DeleteCmd struct {
	Server string `help:"Server URL" default:"http://localhost:8080" env:"LEGALCRM_SERVER"`
	ID     string `arg:"" help:"Tenant ID"`
	Force  bool   `help:"Delete the record even if the schema drop fails (leaves the schema for manual cleanup)" default:"false"`
}

func (d *DeleteCmd) Run(ctx context.Context, globals *Globals) error {
	url := d.Server + "/api/admin/tenants/" + d.ID
	if d.Force {
		url += "?force=true"
	}
	if err := doJSON(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	fmt.Printf("Deleted tenant %s and dropped its schema\n", d.ID)
	return nil
}
