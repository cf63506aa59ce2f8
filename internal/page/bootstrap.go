package page

// bindingName is the Runtime binding the bootstrap script reports through.
const bindingName = "stereotweetEmit"

const iconCompass = `<svg fill="currentColor" viewBox="0 0 36 36" width="1.25em" height="1.25em" xmlns="http://www.w3.org/2000/svg"><path d="M20.82,15.31h0L10.46,9c-.46-.26-1.11.37-.86.84l6.15,10.56,10.56,6.15a.66.66,0,0,0,.84-.86Zm-4,4,3-3,4.55,7.44Z" stroke="currentColor" stroke-width="1"></path><path d="M18,2A16,16,0,1,0,34,18,16,16,0,0,0,18,2Zm1,29.95V29.53H17v2.42A14,14,0,0,1,4.05,19H6.47V17H4.05A14,14,0,0,1,17,4.05V6.47h2V4.05A14,14,0,0,1,31.95,17H29.53v2h2.42A14,14,0,0,1,19,31.95Z" stroke="currentColor" stroke-width="1"></path></svg>`

const iconSpinner = `<svg width="1.25em" height="1.25em" viewBox="0 0 24 24" xmlns="http://www.w3.org/2000/svg"><style>.st-spin{transform-origin:center;animation:st-rot 2s linear infinite}@keyframes st-rot{100%{transform:rotate(360deg)}}</style><g class="st-spin"><circle cx="12" cy="12" r="9.5" fill="none" stroke-width="3" stroke="currentColor" stroke-dasharray="42 150"></circle></g></svg>`

// bootstrapJS runs in every new document. It installs window.__stereotweet
// (the DOM helpers the Go side evaluates) plus the observers that report
// inserted, mutated, activated and dismissed events through the binding.
const bootstrapJS = `(() => {
  if (window.__stereotweet) return;

  const UNIT = 'article[data-testid="tweet"]';
  const TEXT = '[data-testid="tweetText"]';
  const BAR = 'div[role="group"]';
  const TRIGGER = '` + TriggerClass + `';
  const HOST = '` + SurfaceHostClass + `';
  const PREFIX = '` + SurfaceIDPrefix + `';
  const ICON = ` + "`" + iconCompass + "`" + `;
  const SPINNER = ` + "`" + iconSpinner + "`" + `;

  const emit = (ev) => {
    try { window.` + bindingName + `(JSON.stringify(ev)); } catch (e) {}
  };

  let nextRef = 0;
  const unit = (id) => document.querySelector(UNIT + '[` + AttrUnitID + `="' + CSS.escape(id) + '"]');
  const trigger = (id) => document.querySelector('.' + TRIGGER + '[` + AttrTweetID + `="' + CSS.escape(id) + '"]');

  const api = {
    candidates() {
      const out = [];
      for (const a of document.querySelectorAll(UNIT)) {
        if (a.hasAttribute('` + AttrSeen + `')) continue;
        if (!a.querySelector(TEXT) || !a.querySelector(BAR)) continue;
        if (!a.hasAttribute('` + AttrRef + `')) a.setAttribute('` + AttrRef + `', 'c' + (++nextRef));
        out.push({ ref: a.getAttribute('` + AttrRef + `'), html: a.outerHTML });
      }
      return out;
    },
    markSeen(ref, id) {
      const a = document.querySelector('[` + AttrRef + `="' + CSS.escape(ref) + '"]');
      if (!a) return false;
      a.setAttribute('` + AttrSeen + `', 'true');
      a.setAttribute('` + AttrUnitID + `', id);
      return true;
    },
    unitHTML(id) {
      const a = unit(id);
      return a ? { ok: true, html: a.outerHTML } : { ok: false, html: '' };
    },
    media(id) {
      const a = unit(id);
      const out = { ok: !!a, imgSrc: '', imgComplete: false, naturalWidth: 0, backgroundCss: '' };
      if (!a) return out;
      const img = a.querySelector('[data-testid="tweetPhoto"] img');
      if (img) {
        out.imgSrc = img.currentSrc || img.src || '';
        out.imgComplete = !!img.complete;
        out.naturalWidth = img.naturalWidth || 0;
      }
      const bg = a.querySelector('[data-testid="tweetPhoto"] [style*="background-image"]');
      if (bg) out.backgroundCss = getComputedStyle(bg).backgroundImage || '';
      return out;
    },
    attach(id) {
      const a = unit(id);
      if (!a) return 'gone';
      if (a.querySelector('.' + TRIGGER)) return 'present';
      const bar = a.querySelector(BAR);
      if (!bar) return 'present';
      const btn = document.createElement('div');
      btn.className = TRIGGER;
      btn.setAttribute('` + AttrTweetID + `', id);
      btn.setAttribute('role', 'button');
      btn.setAttribute('tabindex', '0');
      btn.setAttribute('title', 'Stereotweet');
      btn.style.cssText = 'color:#546571;display:flex;justify-content:center;align-items:center;align-self:center;cursor:pointer;width:34px;height:34px;border-radius:9999px;transition:background-color 0.2s;';
      const like = bar.querySelector('div[data-testid="like"]');
      const wrap = like && like.closest('div');
      if (wrap) {
        const m = getComputedStyle(wrap).marginLeft;
        if (m && m !== '0px') btn.style.marginLeft = m;
      }
      btn.innerHTML = '<div style="display:flex;align-items:center;justify-content:center">' + ICON + '</div>';
      btn.onmouseenter = () => { btn.style.backgroundColor = 'rgba(29, 155, 240, 0.1)'; btn.style.color = 'rgb(29, 155, 240)'; };
      btn.onmouseleave = () => { btn.style.backgroundColor = 'transparent'; btn.style.color = '#546571'; };
      bar.appendChild(btn);
      return 'created';
    },
    hasTrigger(id) {
      const a = unit(id);
      return !!(a && a.querySelector('.' + TRIGGER));
    },
    busy(id, busy) {
      const btn = trigger(id);
      if (!btn) return false;
      if (busy) btn.setAttribute('` + AttrBusy + `', 'true');
      else btn.removeAttribute('` + AttrBusy + `');
      btn.setAttribute('aria-disabled', busy ? 'true' : 'false');
      btn.style.cursor = busy ? 'progress' : 'pointer';
      btn.firstChild.innerHTML = busy ? SPINNER : ICON;
      return true;
    },
    show(id, html) {
      let host = document.getElementById(PREFIX + id);
      if (!host) {
        const a = unit(id);
        const bar = a && a.querySelector(BAR);
        if (!bar || !bar.parentElement) return false;
        host = document.createElement('div');
        host.id = PREFIX + id;
        host.className = HOST;
        host.style.marginTop = '12px';
        bar.parentElement.insertAdjacentElement('afterend', host);
        host.attachShadow({ mode: 'open' });
      }
      host.shadowRoot.innerHTML = html;
      return true;
    },
    hasSurface(id) {
      return !!document.getElementById(PREFIX + id);
    },
    remove(id) {
      const host = document.getElementById(PREFIX + id);
      if (host) host.remove();
      return true;
    },
  };
  window.__stereotweet = api;

  let pending = null;
  const observer = new MutationObserver((records) => {
    const mutated = new Set();
    let inserted = false;
    for (const r of records) {
      if (r.type === 'childList' && r.addedNodes.length) inserted = true;
      const el = r.target.nodeType === 1 ? r.target : r.target.parentElement;
      const a = el && el.closest && el.closest('[` + AttrUnitID + `]');
      if (a) mutated.add(a.getAttribute('` + AttrUnitID + `'));
    }
    for (const id of mutated) emit({ kind: 'mutated', id });
    if (inserted && !pending) {
      pending = setTimeout(() => { pending = null; emit({ kind: 'inserted' }); }, 100);
    }
  });

  const start = () => {
    observer.observe(document.documentElement, {
      childList: true, subtree: true, attributes: true, attributeFilter: ['src', 'style'],
    });
    emit({ kind: 'inserted' });
  };
  if (document.documentElement) start();
  else document.addEventListener('DOMContentLoaded', start, { once: true });

  document.addEventListener('click', (e) => {
    for (const n of e.composedPath()) {
      if (!n.classList) continue;
      if (n.classList.contains(TRIGGER)) {
        e.preventDefault();
        e.stopPropagation();
        emit({ kind: 'activated', id: n.getAttribute('` + AttrTweetID + `') });
        return;
      }
      if (n.classList.contains(HOST)) {
        e.preventDefault();
        e.stopPropagation();
        emit({ kind: 'dismissed', id: n.id.slice(PREFIX.length) });
        return;
      }
    }
  }, true);
})();`
