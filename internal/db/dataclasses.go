package db

import (
	"fmt"

	"github.com/rsclarke/tracescope/internal/models"
)

// SaveDataClass inserts or replaces a tenant's custom data class.
func SaveDataClass(d Querier, c models.DataClass) error {
	stringOnly := 0
	if c.StringOnly {
		stringOnly = 1
	}
	_, err := d.Exec(`
		INSERT INTO data_classes (tenant, name, regex, string_only)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant, name) DO UPDATE SET regex = excluded.regex, string_only = excluded.string_only
	`, c.Tenant, c.Name, c.Regex, stringOnly)
	if err != nil {
		return fmt.Errorf("upsert data class: %w", err)
	}
	return nil
}

// ListDataClasses returns the custom data classes of a tenant.
func ListDataClasses(d Querier, tenant string) ([]models.DataClass, error) {
	rows, err := d.Query("SELECT tenant, name, regex, string_only FROM data_classes WHERE tenant = ? ORDER BY name", tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []models.DataClass
	for rows.Next() {
		var c models.DataClass
		var stringOnly int
		if err := rows.Scan(&c.Tenant, &c.Name, &c.Regex, &stringOnly); err != nil {
			return nil, err
		}
		c.StringOnly = stringOnly != 0
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// DeleteDataClass removes a tenant's custom data class.
func DeleteDataClass(d Querier, tenant, name string) error {
	_, err := d.Exec("DELETE FROM data_classes WHERE tenant = ? AND name = ?", tenant, name)
	if err != nil {
		return fmt.Errorf("delete data class: %w", err)
	}
	return nil
}
