package nginx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"text/template"
	"time"

	"github.com/shopfabric/backend/internal/domain"
)

const (
	reloadTimeout   = 10 * time.Second
	validateTimeout = 10 * time.Second
)

// Provisioner renders, activates and reloads virtual-host configuration for
// the shared reverse-proxy process. The serving set is process-wide mutable
// state: all mutating operations are serialized by one mutex so a config
// write for one tenant never interleaves with another tenant's reload.
type Provisioner struct {
	binary       string
	availableDir string
	enabledDir   string
	tmpl         *template.Template
	logger       *slog.Logger

	mu sync.Mutex
}

type Config struct {
	Binary       string
	TemplatePath string
	AvailableDir string
	EnabledDir   string
}

type vhostData struct {
	Hostname    string
	TenantID    string
	BackendPort int
	GeneratedAt string
}

const defaultTemplate = `# managed by shopfabric; do not edit
# generated {{ .GeneratedAt }} for tenant {{ .TenantID }}
server {
    listen 80;
    listen 443 ssl;
    server_name {{ .Hostname }};

    location / {
        proxy_pass http://127.0.0.1:{{ .BackendPort }};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
        proxy_set_header X-Tenant-ID "{{ .TenantID }}";
    }
}
`

func NewProvisioner(cfg Config, logger *slog.Logger) (*Provisioner, error) {
	tmpl, err := loadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vhost template: %w", err)
	}

	return &Provisioner{
		binary:       cfg.Binary,
		availableDir: cfg.AvailableDir,
		enabledDir:   cfg.EnabledDir,
		tmpl:         tmpl,
		logger:       logger.With("component", "nginx"),
	}, nil
}

func loadTemplate(path string) (*template.Template, error) {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return template.New("vhost").Parse(string(data))
		}
	}
	return template.New("vhost").Parse(defaultTemplate)
}

// Render writes the vhost config for hostname to the staging location
// (sites-available). The file is not part of the serving set yet.
func (p *Provisioner) Render(tenant *domain.Tenant, hostname string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.render(tenant, hostname)
}

// Enable includes a previously rendered config in the serving set via a
// symlink. The config file is fully written before the link appears, so the
// running proxy never observes a partial write.
func (p *Provisioner) Enable(hostname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enable(hostname)
}

// ValidateAndReload runs the proxy's syntax check over the entire serving set
// and reloads only when it passes. The two always run as one guarded step.
func (p *Provisioner) ValidateAndReload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.validateAndReload(ctx)
}

// Activate runs render, enable and the guarded validate+reload as one
// serialized unit for the orchestrator.
func (p *Provisioner) Activate(ctx context.Context, tenant *domain.Tenant, hostname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.render(tenant, hostname); err != nil {
		return err
	}
	if err := p.enable(hostname); err != nil {
		return err
	}
	return p.validateAndReload(ctx)
}

// Disable unlinks hostname from the serving set. A missing link means the end
// state is already reached and is not an error.
func (p *Provisioner) Disable(hostname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disable(hostname)
}

// Remove disables hostname and deletes its staged config file.
func (p *Provisioner) Remove(hostname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.disable(hostname); err != nil {
		return err
	}

	if err := os.Remove(p.availablePath(hostname)); err != nil && !os.IsNotExist(err) {
		return &domain.RemoteProvisioningError{System: "nginx", Step: "remove", Err: err}
	}

	p.logger.Info("vhost removed", "hostname", hostname)
	return nil
}

// IsEnabled reports whether hostname is part of the serving set. Raw probe
// for the health reconciler.
func (p *Provisioner) IsEnabled(hostname string) bool {
	_, err := os.Lstat(p.enabledPath(hostname))
	return err == nil
}

func (p *Provisioner) render(tenant *domain.Tenant, hostname string) (string, error) {
	if err := os.MkdirAll(p.availableDir, 0o755); err != nil {
		return "", &domain.RemoteProvisioningError{System: "nginx", Step: "render", Err: err}
	}

	var buf bytes.Buffer
	err := p.tmpl.Execute(&buf, vhostData{
		Hostname:    hostname,
		TenantID:    tenant.ID,
		BackendPort: tenant.BackendPort,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", &domain.RemoteProvisioningError{System: "nginx", Step: "render", Err: err}
	}

	path := p.availablePath(hostname)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", &domain.RemoteProvisioningError{System: "nginx", Step: "render", Err: err}
	}

	p.logger.Info("vhost rendered", "hostname", hostname, "tenant_id", tenant.ID, "path", path)
	return path, nil
}

func (p *Provisioner) enable(hostname string) error {
	if err := os.MkdirAll(p.enabledDir, 0o755); err != nil {
		return &domain.RemoteProvisioningError{System: "nginx", Step: "enable", Err: err}
	}

	source := p.availablePath(hostname)
	if _, err := os.Stat(source); err != nil {
		return &domain.RemoteProvisioningError{System: "nginx", Step: "enable", Err: fmt.Errorf("staged config missing: %w", err)}
	}

	link := p.enabledPath(hostname)
	if target, err := os.Readlink(link); err == nil {
		if target == source {
			p.logger.Info("vhost already enabled", "hostname", hostname)
			return nil
		}
		if err := os.Remove(link); err != nil {
			return &domain.RemoteProvisioningError{System: "nginx", Step: "enable", Err: err}
		}
	}

	if err := os.Symlink(source, link); err != nil {
		return &domain.RemoteProvisioningError{System: "nginx", Step: "enable", Err: err}
	}

	p.logger.Info("vhost enabled", "hostname", hostname)
	return nil
}

func (p *Provisioner) disable(hostname string) error {
	link := p.enabledPath(hostname)
	if err := os.Remove(link); err != nil {
		if os.IsNotExist(err) {
			p.logger.Info("vhost already disabled", "hostname", hostname)
			return nil
		}
		return &domain.RemoteProvisioningError{System: "nginx", Step: "disable", Err: err}
	}

	p.logger.Info("vhost disabled", "hostname", hostname)
	return nil
}

func (p *Provisioner) validateAndReload(ctx context.Context) error {
	if err := p.validate(ctx); err != nil {
		return err
	}
	return p.reload(ctx)
}

// validate runs the syntax check over the whole serving set, not just the new
// file: a file valid in isolation can still collide with the merged set
// (duplicate server_name, conflicting listener).
func (p *Provisioner) validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, "-t")
	output, err := cmd.CombinedOutput()
	if err != nil {
		p.logger.Error("config validation failed", "output", string(output), "error", err)
		return &domain.ConfigValidationError{Output: string(output), Err: err}
	}

	return nil
}

func (p *Provisioner) reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, "-s", "reload")
	output, err := cmd.CombinedOutput()
	if err != nil {
		p.logger.Error("reload failed", "output", string(output), "error", err)
		return &domain.RemoteProvisioningError{System: "nginx", Step: "reload", Err: fmt.Errorf("%w: %s", err, string(output))}
	}

	p.logger.Info("proxy reloaded")
	return nil
}

func (p *Provisioner) availablePath(hostname string) string {
	return filepath.Join(p.availableDir, hostname+".conf")
}

func (p *Provisioner) enabledPath(hostname string) string {
	return filepath.Join(p.enabledDir, hostname+".conf")
}
