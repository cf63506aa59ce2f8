package card

const cardTemplate = `
{{define "header"}}<div class="header"><span class="chip">Stereotweet</span></div>{{end}}

{{define "loading"}}{{template "styles"}}<div class="card">
  {{template "header"}}
  <div class="loading-text">
    <svg width="1.5em" height="1.5em" viewBox="0 0 24 24" xmlns="http://www.w3.org/2000/svg"><g class="spinner"><circle cx="12" cy="12" r="9.5" fill="none" stroke-width="3" stroke="currentColor"></circle></g></svg>
    <span>Analyzing tweet...</span>
  </div>
</div>{{end}}

{{define "error"}}{{template "styles"}}<div class="card" data-error-kind="{{.Kind}}">
  {{template "header"}}
  <div class="error-msg">{{.Message}}</div>
</div>{{end}}

{{define "success"}}{{template "styles"}}<div class="card">
  {{template "header"}}
  <div class="content-grid">
    <div class="image-wrapper">
      <img class="img" src="{{.Image}}" alt="Political compass analysis">
    </div>
    <div class="text-wrapper">
      <div class="reasoning-title">Reasoning</div>
      <div class="reasoning-text">{{.Reasoning}}</div>
      <div class="keywords-text"><b>Keywords:</b> {{.Keywords}}</div>
    </div>
  </div>
</div>{{end}}

{{define "styles"}}<style>
  :host {
    --bg: var(--color-base, #ffffff);
    --text-primary: var(--color-base-primary, #0f1419);
    --text-secondary: var(--color-base-secondary, #536471);
    --border: var(--color-border, #cfd9de);
    --accent: var(--color-accent, #1d9bf0);
    --error: var(--color-error, #d90000);
    --error-bg: var(--color-error-container, #fdd8d8);
  }
  @media (prefers-color-scheme: dark) {
    :host {
      --bg: var(--color-base, #000000);
      --text-primary: var(--color-base-primary, #e7e9ea);
      --text-secondary: var(--color-base-secondary, #8b98a5);
      --border: var(--color-border, #38444d);
      --error: var(--color-error, #f3a6a6);
      --error-bg: var(--color-error-container, #5c0000);
    }
  }
  .card {
    max-width: 680px;
    margin: 0 auto;
    border-radius: 16px;
    background-color: var(--bg);
    border: 1px solid var(--border);
    color: var(--text-primary);
    font-family: system-ui, -apple-system, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
    overflow: hidden;
    cursor: pointer;
  }
  .header {
    display: flex;
    gap: 8px;
    align-items: center;
    padding: 12px 16px;
    border-bottom: 1px solid var(--border);
  }
  .chip { font: 600 12px system-ui; color: var(--text-secondary); }
  .loading-text {
    display: flex;
    flex-direction: column;
    align-items: center;
    justify-content: center;
    gap: 12px;
    padding: 32px;
    color: var(--text-secondary);
    font-style: italic;
    font-size: 14px;
  }
  .loading-text svg { color: var(--accent); }
  .spinner { transform-origin: center; animation: spin 2s linear infinite; }
  .spinner circle { stroke-linecap: round; stroke-dasharray: 42 150; }
  @keyframes spin { 100% { transform: rotate(360deg); } }
  .error-msg {
    color: var(--error);
    background-color: var(--error-bg);
    font-weight: 500;
    font-size: 14px;
    padding: 16px;
    text-align: center;
  }
  .content-grid {
    display: grid;
    grid-template-columns: 1fr 1fr;
    gap: 16px;
    padding: 16px;
  }
  @media (max-width: 500px) {
    .content-grid { grid-template-columns: 1fr; }
  }
  .image-wrapper { display: flex; align-items: center; justify-content: center; }
  .img {
    display: block;
    width: 100%;
    max-width: 256px;
    height: auto;
    border-radius: 12px;
    border: 1px solid var(--border);
  }
  .text-wrapper {
    display: flex;
    flex-direction: column;
    gap: 8px;
    font-size: 14px;
    line-height: 1.4;
  }
  .reasoning-title {
    font-size: 13px;
    font-weight: 700;
    color: var(--text-secondary);
    text-transform: uppercase;
  }
  .reasoning-text p { margin: 0; }
  .keywords-text { color: var(--text-secondary); font-size: 13px; margin-top: 8px; }
  .keywords-text b { color: var(--text-primary); font-weight: 600; }
</style>{{end}}
`
