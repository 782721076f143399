// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"fmt"

	"github.com/bestbox-ai/orchestrator/pkg/config"
)

// NewValidatorFromConfig creates a JWTValidator from the deployment's auth
// configuration. Returns nil, nil if authentication is disabled, the signal
// pkg/server uses to skip HTTPMiddleware entirely.
func NewValidatorFromConfig(ctx context.Context, cfg config.AuthConfig) (*JWTValidator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("auth: invalid config: %w", err)
	}
	validator, err := NewJWTValidator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth: create jwt validator: %w", err)
	}
	return validator, nil
}
